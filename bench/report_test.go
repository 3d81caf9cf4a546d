package bench

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *Report {
	return &Report{
		RunID:     "run-1",
		Mode:      "prim",
		MaxM:      100,
		Processes: 2,
		Repeats:   1,
		Buckets: []BucketStats{
			{Elements: 1, Bytes: 8, Min: 10.4e-6, Avg: 11.6e-6, Max: 13e-6, Samples: 1},
			{Elements: 34, Bytes: 272, Min: 20e-6, Avg: 21e-6, Max: 22.6e-6, Samples: 1},
			{Elements: 67, Bytes: 536, Min: 30e-6, Avg: 31e-6, Max: 32e-6, Samples: 1},
		},
		Fit:       FitResult{Slope: 2e-8, Intercept: 10e-6, Variance: 1e-20},
		Bandwidth: 5e7,
		Latency:   10.24e-6,
	}
}

func TestReport_WriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatText))
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Ring benchmark run-1: maxM = 100, 2 processes, mode prim", lines[0])
	assert.Equal(t, []string{"bytes", "min", "avg", "max"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"8", "10", "12", "13"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"272", "20", "21", "23"}, strings.Fields(lines[3]))
	for _, s := range []string{"t_b = 2e-08\n", "t_l = 1e-05\n", "variance estimate = 1e-20\n", "bandwidth = 5e+07 bytes/s\n", "latency = 10 us\n"} {
		assert.Contains(t, out, s)
	}
}

func TestReport_WriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatYAML))

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc["run"])
	assert.Equal(t, 2, doc["processes"])
	buckets, ok := doc["buckets"].([]interface{})
	require.True(t, ok)
	assert.Len(t, buckets, 3)
	assert.Contains(t, doc, "fit")
}

func TestReport_UnknownFormat(t *testing.T) {
	err := sampleReport().Write(&bytes.Buffer{}, "xml")
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

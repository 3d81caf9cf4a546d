package bench

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Report is the outcome of a run on rank 0. Times are in seconds.
type Report struct {
	RunID     string        `yaml:"run"`
	Mode      string        `yaml:"mode"`
	Processor string        `yaml:"processor"`
	MaxM      int           `yaml:"maxM"`
	Processes int           `yaml:"processes"`
	Repeats   int           `yaml:"repeats"`
	Overhead  float64       `yaml:"overhead"`
	Buckets   []BucketStats `yaml:"buckets"`
	Fit       FitResult     `yaml:"fit"`
	Bandwidth float64       `yaml:"bandwidth"`
	Latency   float64       `yaml:"latency"`
}

// Output formats understood by Report.Write.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// CheckFormat reports whether Write understands format.
func CheckFormat(format string) error {
	switch format {
	case FormatText, FormatYAML, "":
		return nil
	}
	return errors.WithStack(&ConfigurationError{
		Name:    "output",
		Value:   format,
		Message: "must be text or yaml",
	})
}

// Write writes the report to w in format, FormatText if empty.
func (r *Report) Write(w io.Writer, format string) error {
	if err := CheckFormat(format); err != nil {
		return err
	}
	if format == FormatYAML {
		return r.WriteYAML(w)
	}
	return r.WriteText(w)
}

func micros(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}

// WriteText writes the human readable table: one row per bucket with times
// in whole microseconds, then the fitted line.
func (r *Report) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Ring benchmark %s: maxM = %d, %d processes, mode %s\n", r.RunID, r.MaxM, r.Processes, r.Mode)
	tw := tabwriter.NewWriter(w, 1, 1, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "bytes\tmin\tavg\tmax\t")
	for _, st := range r.Buckets {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t\n", st.Bytes, micros(st.Min), micros(st.Avg), micros(st.Max))
	}
	if err := tw.Flush(); err != nil {
		return errors.WithStack(err)
	}
	_, err := fmt.Fprintf(w,
		"t_b = %g\nt_l = %g\nvariance estimate = %g\nbandwidth = %g bytes/s\nlatency = %d us\n",
		r.Fit.Slope, r.Fit.Intercept, r.Fit.Variance, r.Bandwidth, micros(r.Latency))
	return errors.WithStack(err)
}

// WriteYAML writes the report as a single yaml document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(enc.Close())
}

package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/btracey/ringbench/bench"
	"github.com/btracey/ringbench/mpi"
)

// Config is everything a ringbench run can be configured with. Values come
// from flags, RINGBENCH_* environment variables and an optional config file,
// in that order of precedence.
type Config struct {
	Bench bench.Config `mapstructure:"bench"`
	MPI   mpi.Config   `mapstructure:"mpi"`
	// Run the whole ring inside this process with the given number of ranks
	// instead of joining a network.
	Local       int    `mapstructure:"local"`
	Output      string `mapstructure:"output"`
	ResultsFile string `mapstructure:"resultsfile"`
	MetricsFile string `mapstructure:"metricsfile"`
	LogLevel    string `mapstructure:"loglevel"`
}

// flagKeys maps flag names to their configuration keys.
var flagKeys = map[string]string{
	"max-m":               "bench.maxm",
	"max-i":               "bench.maxi",
	"repeats":             "bench.repeats",
	"calibration-repeats": "bench.calibrationrepeats",
	"legacy-average":      "bench.legacyaverage",
	"verify":              "bench.verify",
	"op-timeout":          "bench.optimeout",
	mpi.FlagAddr:          "mpi.addr",
	mpi.FlagAllAddrs:      "mpi.alladdr",
	mpi.FlagInitTimeout:   "mpi.inittimeout",
	mpi.FlagProtocol:      "mpi.protocol",
	mpi.FlagPassword:      "mpi.password",
	"local":               "local",
	"output":              "output",
	"results-file":        "resultsfile",
	"metrics-file":        "metricsfile",
	"log-level":           "loglevel",
}

func addBenchFlags(fs *pflag.FlagSet) {
	defaults := bench.DefaultConfig()
	fs.Int("max-m", defaults.MaxM, "largest message, in float64 elements")
	fs.Int("max-i", defaults.MaxI, "number of message sizes, at least 3")
	fs.Int("repeats", defaults.Repeats, "number of times every message size is timed")
	fs.Int("calibration-repeats", defaults.CalibrationRepeats, "number of clock read pairs used to estimate timer overhead")
	fs.Bool("legacy-average", defaults.LegacyAverage, "divide samples by the number of processes before averaging")
	fs.Bool("verify", defaults.Verify, "check that every message returns unchanged")
	fs.Duration("op-timeout", defaults.OpTimeout, "fail if a send, receive or barrier waits longer than this (0 waits forever)")
	fs.String("output", bench.FormatText, "report format: text or yaml")
	fs.String("results-file", "", "also write the report as yaml to this file")
	fs.String("metrics-file", "", "write prometheus metrics in text exposition format to this file")
}

func addGroupFlags(fs *pflag.FlagSet) {
	mpi.AddFlags(fs)
	fs.Int("local", 0, "run this many ranks inside one process instead of joining a network")
}

// loadConfig binds the flags of fs into v, overlays the environment and the
// config file, and decodes the result.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet, path string) (*Config, error) {
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}
	v.SetEnvPrefix("RINGBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return cfg, nil
}

// ConfigureLogging sends logs to stderr, keeping stdout for the report.
func ConfigureLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if level == "" {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}
	log.SetLevel(lvl)
	return nil
}

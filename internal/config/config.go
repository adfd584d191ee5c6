package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-opverify/internal/compare"
)

type Config struct {
	Runtime   RuntimeConfig `mapstructure:"runtime"`
	Verify    VerifyConfig  `mapstructure:"verify"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
}

type RuntimeConfig struct {
	// Workers bounds the goroutines the accelerated CPU kernels fan out to.
	Workers        int    `mapstructure:"workers"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type VerifyConfig struct {
	Reference   []string `mapstructure:"reference"`
	Accelerated []string `mapstructure:"accelerated"`
	// Rule names the float rule override; "default" keeps per-type defaults.
	Rule           string  `mapstructure:"rule"`
	Epsilon        float64 `mapstructure:"epsilon"`
	Percent        float64 `mapstructure:"percent"`
	Units          int64   `mapstructure:"units"`
	MaxTensorBytes int64   `mapstructure:"max_tensor_bytes"`
	Filter         string  `mapstructure:"filter"`
	Report         string  `mapstructure:"report"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Runtime: RuntimeConfig{
			Workers:       0,
			ORTAPIVersion: 23,
		},
		Verify: VerifyConfig{
			Reference:      []string{BackendReference},
			Accelerated:    []string{BackendCPUAcc},
			Rule:           compare.KindDefault.String(),
			Epsilon:        compare.DefaultEpsilon,
			Percent:        1,
			Units:          1,
			MaxTensorBytes: 256 << 20,
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// flagKeys maps each flag to the config key it sets.
var flagKeys = map[string]string{
	"runtime-workers":          "runtime.workers",
	"workers":                  "runtime.workers",
	"runtime-ort-library-path": "runtime.ort_library_path",
	"ort-lib":                  "runtime.ort_library_path",
	"runtime-ort-version":      "runtime.ort_version",
	"runtime-ort-api-version":  "runtime.ort_api_version",
	"reference":                "verify.reference",
	"accelerated":              "verify.accelerated",
	"rule":                     "verify.rule",
	"epsilon":                  "verify.epsilon",
	"percent":                  "verify.percent",
	"units":                    "verify.units",
	"max-tensor-bytes":         "verify.max_tensor_bytes",
	"filter":                   "verify.filter",
	"report":                   "verify.report",
	"metrics-textfile":         "metrics.textfile",
	"log-level":                "log_level",
	"log-format":               "log_format",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Int("runtime-workers", defaults.Runtime.Workers, "Goroutines used by accelerated CPU kernels (0 = GOMAXPROCS)")
	fs.Int("workers", defaults.Runtime.Workers, "Alias for --runtime-workers")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.StringSlice("reference", defaults.Verify.Reference, "Reference backends in preference order")
	fs.StringSlice("accelerated", defaults.Verify.Accelerated, "Accelerated backends in preference order")
	fs.String("rule", defaults.Verify.Rule, "Float tolerance rule: default|abs|percent|units|exact")
	fs.Float64("epsilon", defaults.Verify.Epsilon, "Absolute tolerance for --rule=abs")
	fs.Float64("percent", defaults.Verify.Percent, "Relative tolerance in percent for --rule=percent")
	fs.Int64("units", defaults.Verify.Units, "Raw unit tolerance for --rule=units")
	fs.Int64("max-tensor-bytes", defaults.Verify.MaxTensorBytes, "Largest tensor or context allocation accepted")
	fs.String("filter", defaults.Verify.Filter, "Regular expression selecting scenarios by name or tag")
	fs.String("report", defaults.Verify.Report, "Write a JSON report to this path")
	fs.String("metrics-textfile", defaults.Metrics.Textfile, "Write Prometheus metrics in textfile format to this path")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	fs.String("log-format", defaults.LogFormat, "Log format: console|json")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("OPVERIFY")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)

	if err := v.BindEnv("runtime.ort_library_path", "OPVERIFY_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("opverify")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("runtime.workers", c.Runtime.Workers)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("verify.reference", c.Verify.Reference)
	v.SetDefault("verify.accelerated", c.Verify.Accelerated)
	v.SetDefault("verify.rule", c.Verify.Rule)
	v.SetDefault("verify.epsilon", c.Verify.Epsilon)
	v.SetDefault("verify.percent", c.Verify.Percent)
	v.SetDefault("verify.units", c.Verify.Units)
	v.SetDefault("verify.max_tensor_bytes", c.Verify.MaxTensorBytes)
	v.SetDefault("verify.filter", c.Verify.Filter)
	v.SetDefault("verify.report", c.Verify.Report)
	v.SetDefault("metrics.textfile", c.Metrics.Textfile)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
}

// bindFlags binds every known flag present in fs to its config key. Flags
// that share a key are bound only when set, so an alias left at its default
// never shadows the flag that was given.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bound := map[string]bool{}

	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}

		_ = v.BindPFlag(key, f)
		bound[key] = true
	})

	for name, key := range flagKeys {
		if bound[key] {
			continue
		}

		if f := fs.Lookup(name); f != nil && !isAlias(name) {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	return nil
}

func isAlias(name string) bool {
	return name == "workers" || name == "ort-lib"
}

// Validate rejects settings the verifier cannot run with.
func (c Config) Validate() error {
	if len(c.Verify.Reference) == 0 {
		return errors.New("verify.reference must list at least one backend")
	}

	if len(c.Verify.Accelerated) == 0 {
		return errors.New("verify.accelerated must list at least one backend")
	}

	if c.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must be >= 0, got %d", c.Runtime.Workers)
	}

	if c.Verify.MaxTensorBytes <= 0 {
		return fmt.Errorf("verify.max_tensor_bytes must be > 0, got %d", c.Verify.MaxTensorBytes)
	}

	if _, err := c.Verify.FloatRule(); err != nil {
		return err
	}

	return nil
}

// FloatRule builds the float tolerance override from the rule settings.
func (vc VerifyConfig) FloatRule() (compare.Rule, error) {
	kind, err := compare.ParseKind(vc.Rule)
	if err != nil {
		return compare.Rule{}, err
	}

	switch kind {
	case compare.KindDefault:
		return compare.Rule{}, nil
	case compare.KindAbsEpsilon:
		if vc.Epsilon < 0 {
			return compare.Rule{}, fmt.Errorf("verify.epsilon must be >= 0, got %g", vc.Epsilon)
		}

		return compare.Abs(vc.Epsilon), nil
	case compare.KindPercent:
		if vc.Percent <= 0 {
			return compare.Rule{}, fmt.Errorf("verify.percent must be > 0, got %g", vc.Percent)
		}

		return compare.Percent(vc.Percent), nil
	case compare.KindUnits:
		if vc.Units < 0 {
			return compare.Rule{}, fmt.Errorf("verify.units must be >= 0, got %d", vc.Units)
		}

		return compare.Units(vc.Units), nil
	case compare.KindExact:
		return compare.Rule{Kind: compare.KindExact}, nil
	default:
		return compare.Rule{}, fmt.Errorf("verify.rule %q does not apply to float outputs", vc.Rule)
	}
}

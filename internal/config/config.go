// Package config assembles the runtime configuration. Values are layered in
// this order, later layers winning: Default, the YAML file, a .env file, the
// process environment (prefix TICKERWATCH only) and finally command line
// overrides. The result is validated once at the end.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/pipeline"
	"github.com/rxtech-lab/tickerwatch/internal/supervisor"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/internal/version"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata/provider"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load. Field names
// map to upper snake case, so Pipeline.QueueSize is read from
// TICKERWATCH_PIPELINE_QUEUE_SIZE.
const EnvPrefix = "TICKERWATCH"

// PolygonAPIKeyEnv is the one unprefixed variable Load honours. It only
// fills the key when no other layer set it.
const PolygonAPIKeyEnv = "POLYGON_API_KEY"

// Config is the complete runtime configuration.
type Config struct {
	// Version pins the tickerwatch release the file was written for.
	Version       string         `yaml:"version" json:"version,omitempty" ignored:"true" validate:"-" jsonschema:"title=Version,description=Release the config file was written for"`
	Symbols       []string       `yaml:"symbols" json:"symbols" split_words:"true" validate:"required,min=1,dive,required" jsonschema:"title=Symbols,description=Ticker symbols to watch,minItems=1"`
	From          time.Time      `yaml:"from" json:"from" split_words:"true" validate:"required" jsonschema:"title=From,description=Fixed start of every history query (RFC3339)"`
	Interval      types.Interval `yaml:"interval" json:"interval" split_words:"true" validate:"required,interval" jsonschema:"title=Interval,description=Sampling interval of the history query"`
	Period        time.Duration  `yaml:"period" json:"period" split_words:"true" validate:"gt=0" jsonschema:"title=Period,description=Time between two scheduler ticks"`
	Provider      string         `yaml:"provider" json:"provider" split_words:"true" validate:"required,oneof=yahoo polygon binance" jsonschema:"title=Provider,enum=yahoo,enum=polygon,enum=binance"`
	PolygonAPIKey string         `yaml:"polygon_api_key" json:"polygon_api_key" split_words:"true" validate:"required_if=Provider polygon" jsonschema:"title=Polygon API key"`
	LogLevel      string         `yaml:"log_level" json:"log_level" split_words:"true" validate:"oneof=debug info warn error" jsonschema:"title=Log level,enum=debug,enum=info,enum=warn,enum=error"`
	StatusAddr    string         `yaml:"status_addr" json:"status_addr" split_words:"true" validate:"omitempty,hostname_port" jsonschema:"title=Status address,description=Listen address of the status server; empty disables it"`
	Pipeline      Pipeline       `yaml:"pipeline" json:"pipeline"`
}

// Pipeline tunes queues, fetch concurrency and restarts.
type Pipeline struct {
	QueueSize            int           `yaml:"queue_size" json:"queue_size" split_words:"true" validate:"gte=1" jsonschema:"title=Queue size,minimum=1"`
	OverflowPolicy       string        `yaml:"overflow_policy" json:"overflow_policy" split_words:"true" validate:"oneof=block drop_oldest reject" jsonschema:"title=Overflow policy,enum=block,enum=drop_oldest,enum=reject"`
	MaxConcurrentFetches int64         `yaml:"max_concurrent_fetches" json:"max_concurrent_fetches" split_words:"true" validate:"gte=1" jsonschema:"title=Max concurrent fetches,minimum=1"`
	LaneCapacity         int           `yaml:"lane_capacity" json:"lane_capacity" split_words:"true" validate:"gte=1" jsonschema:"title=Lane capacity,description=Pending requests kept per symbol,minimum=1"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" split_words:"true" validate:"gte=0" jsonschema:"title=Fetch timeout,description=Zero disables the timeout"`
	FetchRetries         int           `yaml:"fetch_retries" json:"fetch_retries" split_words:"true" validate:"gte=0" jsonschema:"title=Fetch retries,minimum=0"`
	MaxRestarts          int           `yaml:"max_restarts" json:"max_restarts" split_words:"true" validate:"gte=0" jsonschema:"title=Max restarts,description=Zero means unlimited,minimum=0"`
	Window               int           `yaml:"window" json:"window" split_words:"true" validate:"gte=2" jsonschema:"title=Trailing window,minimum=2"`
}

// Default returns the built-in configuration. It is not valid on its own:
// symbols and from must still be supplied.
func Default() Config {
	dispatcher := pipeline.DefaultDispatcherConfig()

	return Config{
		Version:       "",
		Symbols:       nil,
		From:          time.Time{},
		Interval:      types.IntervalOneHour,
		Period:        pipeline.DefaultTickPeriod,
		Provider:      string(provider.ProviderYahoo),
		PolygonAPIKey: "",
		LogLevel:      "info",
		StatusAddr:    "",
		Pipeline: Pipeline{
			QueueSize:            bus.DefaultQueueCapacity,
			OverflowPolicy:       string(bus.OverflowBlock),
			MaxConcurrentFetches: dispatcher.MaxConcurrentFetches,
			LaneCapacity:         dispatcher.LaneCapacity,
			FetchTimeout:         30 * time.Second,
			FetchRetries:         0,
			MaxRestarts:          0,
			Window:               30,
		},
	}
}

// LoadOptions selects the layers read by Load.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string
	// Override applies command line values last.
	Override func(*Config)
}

// Load builds a validated configuration from every layer.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigFile != "" {
		if err := cfg.loadFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read env file %s", opts.EnvFile)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "read environment", err)
	}

	if cfg.PolygonAPIKey == "" {
		cfg.PolygonAPIKey = os.Getenv(PolygonAPIKeyEnv)
	}

	if opts.Override != nil {
		opts.Override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read config file %s", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "parse config file %s", path)
	}

	return version.CheckConfigVersion(version.GetVersion(), c.Version)
}

// Validate checks every field and reports the first violation as an
// invalid configuration error.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fieldErr := validationErrors[0]

		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
			"invalid value for %s (rule %s)", fieldErr.Namespace(), fieldErr.Tag())
	}

	return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
}

// PipelineConfig converts the configuration into the pipeline's settings.
func (c *Config) PipelineConfig() pipeline.Config {
	retry := supervisor.DefaultPolicy()
	retry.MaxRetries = c.Pipeline.FetchRetries

	return pipeline.Config{
		Symbols:        c.Symbols,
		From:           c.From,
		Interval:       c.Interval,
		TickPeriod:     c.Period,
		QueueSize:      c.Pipeline.QueueSize,
		OverflowPolicy: bus.OverflowPolicy(c.Pipeline.OverflowPolicy),
		Dispatcher: pipeline.DispatcherConfig{
			MaxConcurrentFetches: c.Pipeline.MaxConcurrentFetches,
			LaneCapacity:         c.Pipeline.LaneCapacity,
			FetchTimeout:         c.Pipeline.FetchTimeout,
			Retry:                retry,
		},
		Window:      c.Pipeline.Window,
		Restart:     supervisor.DefaultPolicy(),
		MaxRestarts: c.Pipeline.MaxRestarts,
	}
}

// ClientConfig returns the market data client settings.
func (c *Config) ClientConfig() marketdata.ClientConfig {
	return marketdata.ClientConfig{
		ProviderType:  provider.ProviderType(c.Provider),
		PolygonApiKey: c.PolygonAPIKey,
	}
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		return types.Interval(fl.Field().String()).IsValid()
	})

	return validate
}

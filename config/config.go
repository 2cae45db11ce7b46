/*
config.go - Process configuration

PURPOSE:
  One Config struct, filled in this order (later wins):
    1. Defaults (setDefaults)
    2. Optional config file (--config, any format viper reads)
    3. .env file in the working directory, if present
    4. WORKFORCE_* environment variables (WORKFORCE_SERVER_PORT, ...)
    5. Command-line flags (--port, --db)

EXAMPLES:
  ./server --db=":memory:" --port=3000
  WORKFORCE_AUTH_SECRET=s3cret WORKFORCE_BILLING_DELETION_MODE=refund ./server
  ./server --config=./config.yaml

SEE ALSO:
  - cmd/server/main.go: Wiring
*/
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/schedule"
)

const EnvPrefix = "WORKFORCE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Path is a SQLite file, or ":memory:".
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Secret        string        `mapstructure:"secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminUsername string        `mapstructure:"admin_username"`
	AdminPassword string        `mapstructure:"admin_password"`
}

type CalendarConfig struct {
	// BaseURL of the day-off API. Empty runs on an empty static calendar.
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryMax        int           `mapstructure:"retry_max"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type BillingConfig struct {
	DayRate      string `mapstructure:"day_rate"`
	DeletionMode string `mapstructure:"deletion_mode"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.path", "workforce.db")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("calendar.base_url", "https://dayoffapi.vercel.app")
	v.SetDefault("calendar.timeout", 10*time.Second)
	v.SetDefault("calendar.retry_max", 2)
	v.SetDefault("calendar.cache_ttl", 24*time.Hour)
	v.SetDefault("calendar.refresh_interval", 6*time.Hour)

	v.SetDefault("billing.day_rate", "0.10")
	v.SetDefault("billing.deletion_mode", string(schedule.DeletionCharge))

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", billing.TopicTransactionRecorded)

	v.SetDefault("log.level", "info")
}

// Load reads configuration for a process started with args (without the
// program name).
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.Int("port", 8080, "HTTP server port")
	fs.String("db", "workforce.db", `SQLite database path (":memory:" for in-memory)`)
	configFile := fs.String("config", "", "optional config file")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v)

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", *configFile)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("server.port", fs.Lookup("port")); err != nil {
		return nil, errors.Wrap(err, "bind port flag")
	}
	if err := v.BindPFlag("database.path", fs.Lookup("db")); err != nil {
		return nil, errors.Wrap(err, "bind db flag")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required (set WORKFORCE_AUTH_SECRET)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port %d out of range", c.Server.Port)
	}
	rate, err := c.DayRate()
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return errors.Newf("billing.day_rate must be positive, got %s", rate)
	}
	if !c.DeletionMode().Valid() {
		return errors.Newf("billing.deletion_mode must be charge or refund, got %q", c.Billing.DeletionMode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka.enabled")
	}
	return nil
}

func (c *Config) DayRate() (billing.Money, error) {
	rate, err := billing.ParseMoney(c.Billing.DayRate)
	if err != nil {
		return billing.Zero, errors.Wrap(err, "billing.day_rate")
	}
	return rate, nil
}

func (c *Config) DeletionMode() schedule.DeletionMode {
	return schedule.DeletionMode(c.Billing.DeletionMode)
}

// ScheduleConfig is the engine configuration. Call after Validate.
func (c *Config) ScheduleConfig() schedule.Config {
	rate, _ := c.DayRate()
	return schedule.Config{DayRate: rate, DeletionMode: c.DeletionMode()}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Survey    SurveyConfig    `mapstructure:"survey"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CallPath     string        `mapstructure:"call_path"`
	ResultPath   string        `mapstructure:"result_path"`
}

// StoreConfig selects the result store. Location is a URL whose scheme picks
// the backend: postgres://, postgresql://, scylla:// or memory://.
type StoreConfig struct {
	Location string         `mapstructure:"location"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Scylla   ScyllaConfig   `mapstructure:"scylla"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts             []string      `mapstructure:"hosts"`
	Port              int           `mapstructure:"port"`
	Keyspace          string        `mapstructure:"keyspace"`
	Consistency       string        `mapstructure:"consistency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type SurveyConfig struct {
	NumbersFile         string `mapstructure:"numbers_file"`
	CallHandlerURL      string `mapstructure:"call_handler_url"`
	CallResultURL       string `mapstructure:"call_result_url"`
	InternationalPrefix string `mapstructure:"international_prefix"`
}

type TwilioConfig struct {
	AccountSID     string        `mapstructure:"account_sid"`
	AuthToken      string        `mapstructure:"auth_token"`
	CallerNumber   string        `mapstructure:"caller_number"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RingTimeout    int           `mapstructure:"ring_timeout"`
	MachineAction  string        `mapstructure:"machine_action"`
}

type PromptConfig struct {
	Lines        []string `mapstructure:"lines"`
	Voice        string   `mapstructure:"voice"`
	Language     string   `mapstructure:"language"`
	GatherDigits int      `mapstructure:"gather_digits"`
}

// KafkaConfig is optional; no brokers means results are not published.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	ClientID          string   `mapstructure:"client_id"`
	ResultTopic       string   `mapstructure:"result_topic"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

// RedisConfig is optional; an empty address disables the run lease.
type RedisConfig struct {
	Address        string        `mapstructure:"address"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	MaxRetries     int           `mapstructure:"max_retries"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
	LeaseKeyPrefix string        `mapstructure:"lease_key_prefix"`
}

type TelemetryConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	ServiceName       string        `mapstructure:"service_name"`
	SampleRatio       float64       `mapstructure:"sample_ratio"`
	TracingEnabled    bool          `mapstructure:"tracing_enabled"`
	Propagators       []string      `mapstructure:"propagators"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CollectorProtocol string        `mapstructure:"collector_protocol"`
}

// Load reads configuration from an optional file, environment variables and,
// when given, command line flags. Flags win over env, env over file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PERCENSEO")
	v.SetEnvKeyReplacer(NewEnvReplacer())
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "percenseo")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("log.level", "")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.call_path", "/survey/call")
	v.SetDefault("http.result_path", "/survey/result")

	v.SetDefault("store.location", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("store.postgres.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("store.scylla.hosts", []string{})
	v.SetDefault("store.scylla.port", 9042)
	v.SetDefault("store.scylla.keyspace", "")
	v.SetDefault("store.scylla.consistency", "quorum")
	v.SetDefault("store.scylla.timeout", 5*time.Second)
	v.SetDefault("store.scylla.replication_factor", 1)
	v.SetDefault("store.scylla.disable_init_schema", false)

	v.SetDefault("survey.numbers_file", "")
	v.SetDefault("survey.call_handler_url", "")
	v.SetDefault("survey.call_result_url", "")
	v.SetDefault("survey.international_prefix", "")

	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.caller_number", "")
	v.SetDefault("twilio.base_url", "https://api.twilio.com/2010-04-01")
	v.SetDefault("twilio.request_timeout", 10*time.Second)
	v.SetDefault("twilio.ring_timeout", 30)
	v.SetDefault("twilio.machine_action", "Hangup")

	v.SetDefault("prompt.lines", []string{
		"Hello, this is an automated survey call.",
		"Thank you for taking the time to answer.",
		"Goodbye.",
	})
	v.SetDefault("prompt.voice", "alice")
	v.SetDefault("prompt.language", "en-US")
	v.SetDefault("prompt.gather_digits", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "percenseo")
	v.SetDefault("kafka.result_topic", "survey.results")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_size", 4)
	v.SetDefault("redis.min_idle_conns", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.lease_ttl", 2*time.Hour)
	v.SetDefault("redis.lease_key_prefix", "percenseo:lease:")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "percenseo")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.propagators", []string{"tracecontext", "baggage"})
	v.SetDefault("telemetry.shutdown_timeout", 5*time.Second)
	v.SetDefault("telemetry.collector_protocol", "http")
}

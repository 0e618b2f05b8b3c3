package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from environment variables.
type Env struct {
	MaxLength                 int    `env:"BATCHSUM_MAX_LENGTH"                   envDefault:"200"`
	MinLength                 int    `env:"BATCHSUM_MIN_LENGTH"                   envDefault:"5"`
	Separator                 string `env:"BATCHSUM_SEPARATOR"                    envDefault:" "`
	SingleSummary             bool   `env:"BATCHSUM_SINGLE_SUMMARY"               envDefault:"false"`
	BatchSize                 int    `env:"BATCHSUM_BATCH_SIZE"                   envDefault:"16"`
	ProgressBar               bool   `env:"BATCHSUM_PROGRESS_BAR"                 envDefault:"true"`
	CleanUpTokenizationSpaces bool   `env:"BATCHSUM_CLEAN_UP_TOKENIZATION_SPACES" envDefault:"true"`

	// Tokenizer is "simple" or a tiktoken model/encoding name.
	Tokenizer      string `env:"BATCHSUM_TOKENIZER"        envDefault:"simple"`
	ModelMaxLength int    `env:"BATCHSUM_MODEL_MAX_LENGTH"`

	// Diagnostics selects the advisory sink: memory or redis.
	Diagnostics string `env:"BATCHSUM_DIAGNOSTICS" envDefault:"memory"`
	// Store selects where results are saved: none, memory, postgres or mongo.
	Store string `env:"BATCHSUM_STORE" envDefault:"none"`

	Telemetry    bool   `env:"BATCHSUM_TELEMETRY"          envDefault:"false"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Engine   EngineEnv
	Redis    RedisEnv    `envPrefix:"REDIS_"`
	Postgres PostgresEnv `envPrefix:"POSTGRES_"`
	Mongo    MongoEnv    `envPrefix:"MONGODB_"`
}

// EngineEnv selects and configures the inference engine. RPS caps generator
// calls per second; zero disables the limit.
type EngineEnv struct {
	Provider        string  `env:"BATCHSUM_ENGINE"             envDefault:"lead"`
	Model           string  `env:"BATCHSUM_MODEL"`
	BaseURL         string  `env:"BATCHSUM_BASE_URL"`
	Concurrency     int     `env:"BATCHSUM_ENGINE_CONCURRENCY" envDefault:"4"`
	RPS             float64 `env:"BATCHSUM_ENGINE_RPS"         envDefault:"0"`
	Burst           int     `env:"BATCHSUM_ENGINE_BURST"       envDefault:"1"`
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string  `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string  `env:"GEMINI_API_KEY"`
}

// APIKey returns the credential of the selected provider.
func (e EngineEnv) APIKey() string {
	switch e.Provider {
	case "openai":
		return e.OpenAIAPIKey
	case "claude":
		return e.AnthropicAPIKey
	case "gemini":
		return e.GeminiAPIKey
	default:
		return ""
	}
}

// DefaultModel returns Model, or the provider's default model when unset.
func (e EngineEnv) DefaultModel() string {
	if e.Model != "" {
		return e.Model
	}
	switch e.Provider {
	case "openai":
		return "gpt-4o-mini"
	case "claude":
		return "claude-sonnet-4-5-20250929"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

type RedisEnv struct {
	Addr     string        `env:"ADDR"     envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB"       envDefault:"0"`
	Prefix   string        `env:"PREFIX"   envDefault:"batchsum:advisory:"`
	TTL      time.Duration `env:"TTL"      envDefault:"0s"`
}

type PostgresEnv struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	DBName   string `env:"DB"       envDefault:"batchsum"`
	SSLMode  string `env:"SSLMODE"  envDefault:"disable"`
}

type MongoEnv struct {
	URI        string `env:"URI"        envDefault:"mongodb://localhost:27017"`
	Database   string `env:"DB"         envDefault:"batchsum"`
	Collection string `env:"COLLECTION" envDefault:"summaries"`
}

// Load parses the environment into an Env.
func Load() (Env, error) {
	return env.ParseAs[Env]()
}

// Validate checks the settings that the selected backends depend on.
func (e Env) Validate() error {
	errs := []error{
		ValidateSummarizerConfig(e.MinLength, e.MaxLength, e.BatchSize),
		ValidateEngineConfig(e.Engine.Provider, e.Engine.APIKey(), e.Engine.DefaultModel()),
	}
	v := NewValidator()
	v.ValidateOneOf("diagnostics", e.Diagnostics, "memory", "redis")
	v.ValidateOneOf("store", e.Store, "none", "memory", "postgres", "mongo")
	errs = append(errs, v.Error())

	if e.Diagnostics == "redis" {
		errs = append(errs, ValidateRedisConfig(e.Redis.Addr, e.Redis.DB, e.Redis.Prefix))
	}
	switch e.Store {
	case "postgres":
		errs = append(errs, ValidatePostgresConfig(e.Postgres.Host, e.Postgres.Port, e.Postgres.User, e.Postgres.DBName, e.Postgres.SSLMode))
	case "mongo":
		errs = append(errs, ValidateMongoDBConfig(e.Mongo.URI, e.Mongo.Database, e.Mongo.Collection))
	}
	return errors.Join(errs...)
}

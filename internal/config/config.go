package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds the build-time configuration surface of the client:
// backend location, transport tuning, credential storage and third-party
// service keys. Values come from the environment; see the field tags.
type Config struct {
	Env     string `env:"AGRIMANDI_ENV" envDefault:"dev"`
	AppName string `env:"AGRIMANDI_APP_NAME" envDefault:"AgriMandi"`

	APIBaseURL     string        `env:"AGRIMANDI_API_BASE_URL" envDefault:"http://localhost:8000/api"`
	RequestTimeout time.Duration `env:"AGRIMANDI_REQUEST_TIMEOUT" envDefault:"30s"`

	// CredentialsPath is where the persisted credential record lives.
	// CredentialsKey, when set, enables at-rest encryption of that file.
	CredentialsPath string `env:"AGRIMANDI_CREDENTIALS_PATH" envDefault:"./data/credentials.json"`
	CredentialsKey  string `env:"AGRIMANDI_CREDENTIALS_KEY"`

	// Requests per second allowed against the backend; zero disables the
	// client-side limiter.
	RequestsPerSecond float64 `env:"AGRIMANDI_REQUESTS_PER_SECOND" envDefault:"0"`

	// Third-party service keys, passed through to the surfaces that need
	// them. Not consumed by the session/auth layer itself.
	MapsAPIKey     string `env:"AGRIMANDI_MAPS_API_KEY"`
	PaymentsAPIKey string `env:"AGRIMANDI_PAYMENTS_API_KEY"`
	AIInferenceKey string `env:"AGRIMANDI_AI_INFERENCE_KEY"`
}

// New parses configuration from the environment.
func New() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "[config.New] env.Parse")
	}
	return cfg, nil
}

// IsDev reports whether the client runs against a development deployment.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

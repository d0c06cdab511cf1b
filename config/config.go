package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName      string `env:"AUTH_APP_NAME" envDefault:"identity-service"`
	AppEnv       string `env:"AUTH_APP_ENV" envDefault:"local"`
	LogLevel     string `env:"AUTH_LOG_LEVEL" envDefault:"info"`
	HTTPHost     string `env:"AUTH_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort     string `env:"AUTH_HTTP_PORT" envDefault:"8081"`
	HTTPBasePath string `env:"AUTH_HTTP_BASE_PATH" envDefault:"/api/v1"`

	DataDir         string        `env:"AUTH_DATA_DIR" envDefault:"./data"`
	BackupRetention int           `env:"AUTH_BACKUP_RETENTION" envDefault:"10"`
	AutosaveEvery   time.Duration `env:"AUTH_AUTOSAVE_INTERVAL" envDefault:"5m"`
	SweepEvery      time.Duration `env:"AUTH_SWEEP_INTERVAL" envDefault:"10m"`
	SessionMaxIdle  time.Duration `env:"AUTH_SESSION_MAX_IDLE" envDefault:"24h"`

	JWTSecret     string        `env:"AUTH_JWT_SECRET"`
	JWTPrivateKey string        `env:"AUTH_JWT_PRIVATE_KEY"`
	JWTPublicKey  string        `env:"AUTH_JWT_PUBLIC_KEY"`
	JWTAudience   string        `env:"AUTH_JWT_AUDIENCE" envDefault:"frontend"`
	JWTIssuer     string        `env:"AUTH_JWT_ISSUER" envDefault:"identity-service"`
	AccessTTL     time.Duration `env:"AUTH_JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTH_JWT_REFRESH_TTL" envDefault:"168h"`

	BcryptCost      int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	LockoutAttempts int           `env:"AUTH_LOCKOUT_ATTEMPTS" envDefault:"5"`
	LockoutWindow   time.Duration `env:"AUTH_LOCKOUT_WINDOW" envDefault:"15m"`

	IntegrationAPIKey      string        `env:"INTEGRATION_API_KEY"`
	IntegrationOrigins     []string      `env:"INTEGRATION_ALLOWED_ORIGINS" envSeparator:","`
	IntegrationRedirectURL string        `env:"INTEGRATION_REDIRECT_URL" envDefault:"https://app.trendyx.ai/welcome"`
	IntegrationTokenTTL    time.Duration `env:"INTEGRATION_TOKEN_TTL" envDefault:"10m"`
	PendingSignupTTL       time.Duration `env:"INTEGRATION_PENDING_TTL" envDefault:"30m"`
	WebhookSecret          string        `env:"INTEGRATION_WEBHOOK_SECRET"`

	NATSURL              string `env:"NATS_URL"`
	NATSVerifySubject    string `env:"NATS_SUBJECT_VERIFY_JWT" envDefault:"auth.verifyJWT"`
	NATSUserEventSubject string `env:"NATS_SUBJECT_USER_EVENTS" envDefault:"auth.user-events"`

	DefaultRole string `env:"AUTH_DEFAULT_ROLE" envDefault:"user"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Sweeper       SweeperConfig
	Admin         AdminSeedConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOBA_APP_ENV" required:"true"`
	Port         string `envconfig:"SOBA_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SOBA_APP_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"SOBA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOBA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOBA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOBA_DB_DSN"`
	Driver string `envconfig:"SOBA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOBA_DB_HOST"`
	LegacyPort     int    `envconfig:"SOBA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOBA_DB_USER"`
	LegacyPassword string `envconfig:"SOBA_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOBA_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOBA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOBA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOBA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOBA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOBA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOBA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOBA_REDIS_ADDR"`
	Password     string        `envconfig:"SOBA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOBA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOBA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOBA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOBA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOBA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOBA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOBA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOBA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOBA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SOBA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SOBA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SOBA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SOBA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SOBA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"SOBA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"SOBA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"SOBA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOBA_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey        string        `envconfig:"SOBA_STRIPE_API_KEY"`
	WebhookSecret string        `envconfig:"SOBA_STRIPE_WEBHOOK_SECRET"`
	Env           string        `envconfig:"SOBA_STRIPE_ENV" default:"test"`
	Timeout       time.Duration `envconfig:"SOBA_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency             string `envconfig:"SOBA_CHECKOUT_CURRENCY" default:"cad"`
	MembershipFeeCents   int64  `envconfig:"SOBA_CHECKOUT_MEMBERSHIP_FEE_CENTS" default:"10000"`
	DonationMinimumCents int64  `envconfig:"SOBA_CHECKOUT_DONATION_MINIMUM_CENTS" default:"500"`
}

type SweeperConfig struct {
	PendingTTL time.Duration `envconfig:"SOBA_SWEEPER_PENDING_TTL" default:"24h"`
	Interval   time.Duration `envconfig:"SOBA_SWEEPER_INTERVAL" default:"1h"`
}

// AdminSeedConfig describes the bootstrap super-admin account. The account is
// created through the regular member store with a hashed password, never via
// a source-level credential comparison.
type AdminSeedConfig struct {
	Email    string `envconfig:"SOBA_ADMIN_SEED_EMAIL"`
	Password string `envconfig:"SOBA_ADMIN_SEED_PASSWORD"`
	FullName string `envconfig:"SOBA_ADMIN_SEED_NAME" default:"Site Administrator"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SOBA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"SOBA_PUBSUB_DOMAIN_TOPIC" default:"soba-domain-events"`
	DomainSubscription string `envconfig:"SOBA_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOBA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOBA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOBA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Razorpay     RazorpayConfig
	Shiprocket   ShiprocketConfig
	Realtime     RealtimeConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"ARANYA_APP_ENV" required:"true"`
	Port         string `envconfig:"ARANYA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ARANYA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ARANYA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ARANYA_DB_DSN"`
	Driver string `envconfig:"ARANYA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ARANYA_DB_HOST"`
	LegacyPort     int    `envconfig:"ARANYA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ARANYA_DB_USER"`
	LegacyPassword string `envconfig:"ARANYA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ARANYA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ARANYA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ARANYA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARANYA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARANYA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARANYA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ARANYA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ARANYA_REDIS_ADDR"`
	Password     string        `envconfig:"ARANYA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARANYA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARANYA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARANYA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARANYA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARANYA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARANYA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ARANYA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ARANYA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ARANYA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig carries the order policy knobs. The defaults mirror the
// storefront policy: postpaid below one thousand rupees, a five day
// post-delivery cancellation window, and five percent coin cashback.
type CheckoutConfig struct {
	PostpaidCeiling     int64         `envconfig:"ARANYA_POSTPAID_CEILING_RUPEES" default:"1000"`
	CancellationWindow  time.Duration `envconfig:"ARANYA_CANCELLATION_WINDOW" default:"120h"`
	CashbackPercent     int           `envconfig:"ARANYA_COIN_CASHBACK_PERCENT" default:"5"`
	GSTStateCode        string        `envconfig:"ARANYA_GST_STATE_CODE" default:"09"`
	DefaultShippingFee  int64         `envconfig:"ARANYA_SHIPPING_FEE_RUPEES" default:"0"`
	IdempotencyTTL      time.Duration `envconfig:"ARANYA_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
	QuoteIdempotencyTTL time.Duration `envconfig:"ARANYA_QUOTE_IDEMPOTENCY_TTL" default:"24h"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"ARANYA_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"ARANYA_RAZORPAY_KEY_SECRET" required:"true"`
}

type ShiprocketConfig struct {
	BaseURL        string        `envconfig:"ARANYA_SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	Email          string        `envconfig:"ARANYA_SHIPROCKET_EMAIL" required:"true"`
	Password       string        `envconfig:"ARANYA_SHIPROCKET_PASSWORD" required:"true"`
	PickupLocation string        `envconfig:"ARANYA_SHIPROCKET_PICKUP_LOCATION" default:"Home"`
	PickupPostcode string        `envconfig:"ARANYA_SHIPROCKET_PICKUP_POSTCODE" required:"true"`
	Timeout        time.Duration `envconfig:"ARANYA_SHIPROCKET_TIMEOUT" default:"15s"`
	TokenTTL       time.Duration `envconfig:"ARANYA_SHIPROCKET_TOKEN_TTL" default:"12h"`
}

type RealtimeConfig struct {
	Channel          string        `envconfig:"ARANYA_REALTIME_CHANNEL" default:"storefront:events"`
	WriteTimeout     time.Duration `envconfig:"ARANYA_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PingInterval     time.Duration `envconfig:"ARANYA_REALTIME_PING_INTERVAL" default:"30s"`
	SendBuffer       int           `envconfig:"ARANYA_REALTIME_SEND_BUFFER" default:"32"`
	ReconnectMinWait time.Duration `envconfig:"ARANYA_REALTIME_RECONNECT_MIN" default:"1s"`
	ReconnectMaxWait time.Duration `envconfig:"ARANYA_REALTIME_RECONNECT_MAX" default:"30s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ARANYA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ARANYA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ARANYA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ARANYA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"ARANYA_DB_HOST": db.LegacyHost,
		"ARANYA_DB_USER": db.LegacyUser,
		"ARANYA_DB_NAME": db.LegacyName,
	}
	for _, name := range []string{"ARANYA_DB_HOST", "ARANYA_DB_USER", "ARANYA_DB_NAME"} {
		if legacyValues[name] == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either ARANYA_DB_DSN or %s are required", strings.Join(missing, ", "))
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

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Settlement SettlementConfig
	Delivery   DeliveryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Delivery.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SettlementConfig sizes the asynchronous payment settlement pool.
type SettlementConfig struct {
	Workers          int           `envconfig:"STOREFRONT_SETTLEMENT_WORKERS" default:"5"`
	QueueSize        int           `envconfig:"STOREFRONT_SETTLEMENT_QUEUE_SIZE" default:"64"`
	SimulatedLatency time.Duration `envconfig:"STOREFRONT_SETTLEMENT_LATENCY" default:"5s"`
	ShutdownTimeout  time.Duration `envconfig:"STOREFRONT_SETTLEMENT_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DeliveryConfig supplies the defaults written on first access to the
// delivery settings singleton row.
type DeliveryConfig struct {
	DefaultExpressCost   string `envconfig:"STOREFRONT_DELIVERY_EXPRESS_COST" default:"500.00"`
	DefaultFreeThreshold string `envconfig:"STOREFRONT_DELIVERY_FREE_THRESHOLD" default:"2000.00"`
	DefaultRegularCost   string `envconfig:"STOREFRONT_DELIVERY_REGULAR_COST" default:"200.00"`
}

func (d DeliveryConfig) validate() error {
	for _, raw := range []string{d.DefaultExpressCost, d.DefaultFreeThreshold, d.DefaultRegularCost} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid delivery default %q: %w", raw, err)
		}
	}
	return nil
}

// ExpressCost returns the default express delivery cost.
func (d DeliveryConfig) ExpressCost() decimal.Decimal {
	return decimal.RequireFromString(d.DefaultExpressCost)
}

// FreeThreshold returns the default free delivery threshold.
func (d DeliveryConfig) FreeThreshold() decimal.Decimal {
	return decimal.RequireFromString(d.DefaultFreeThreshold)
}

// RegularCost returns the default standard delivery cost.
func (d DeliveryConfig) RegularCost() decimal.Decimal {
	return decimal.RequireFromString(d.DefaultRegularCost)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		"STOREFRONT_DB_HOST": db.Host,
		"STOREFRONT_DB_USER": db.User,
		"STOREFRONT_DB_NAME": db.Name,
	}
	for _, env := range []string{"STOREFRONT_DB_HOST", "STOREFRONT_DB_USER", "STOREFRONT_DB_NAME"} {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either STOREFRONT_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	SessionSecret string
	DatabaseURL   string
	RedisURL      string

	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	// DefaultDeliveryLat/Lng anchor match generation when a demand signal
	// carries no delivery coordinates.
	DefaultDeliveryLat float64
	DefaultDeliveryLng float64

	// MatchExpiryInterval is how often the worker sweeps for stale matches.
	MatchExpiryInterval time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" && viper.GetString("DATABASE_URL_TEST") != "" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	// Wagga Wagga, the centre of the Riverina biomass belt; only used when a
	// demand signal omits its delivery coordinates.
	lat := viper.GetFloat64("DEFAULT_DELIVERY_LAT")
	lng := viper.GetFloat64("DEFAULT_DELIVERY_LNG")
	if lat == 0 && lng == 0 {
		lat, lng = -35.1082, 147.3598
	}

	interval := viper.GetDuration("MATCH_EXPIRY_INTERVAL")
	if interval <= 0 {
		interval = time.Hour
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		DefaultDeliveryLat:  lat,
		DefaultDeliveryLng:  lng,
		MatchExpiryInterval: interval,
	}, nil
}

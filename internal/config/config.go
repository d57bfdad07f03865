package config

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string `mapstructure:"SERVER_PORT"`
	PostgresURL     string `mapstructure:"POSTGRES_URL"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	AMQPURL         string `mapstructure:"AMQP_URL"`
	LocationChannel string `mapstructure:"LOCATION_CHANNEL"`
	ProbeTimeoutSec int    `mapstructure:"PROBE_TIMEOUT_SEC"`
}

// Load reads an optional dotenv file (RUNFLOW_ENV_FILE, default .env) and
// then the environment. Variables already set in the environment win.
func Load() Config {
	loadEnvFile()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("LOCATION_CHANNEL", "runflow:location")
	v.SetDefault("PROBE_TIMEOUT_SEC", 10)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func loadEnvFile() {
	path := os.Getenv("RUNFLOW_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: read %s: %v", path, err)
	}
}

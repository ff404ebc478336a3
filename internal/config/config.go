package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Compressor CompressorConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	BodyLimit int // megabytes, caps a whole multipart batch
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QueueConfig struct {
	MaxConcurrent int
}

type CompressorConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type RateLimitConfig struct {
	EnqueuePerMin  int
	SettingsPerMin int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.body_limit", "SERVER_BODY_LIMIT")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("queue.max_concurrent", "QUEUE_MAX_CONCURRENT")
	_ = viper.BindEnv("compressor.service_url", "COMPRESSOR_SERVICE_URL")
	_ = viper.BindEnv("compressor.timeout", "COMPRESSOR_TIMEOUT")
	_ = viper.BindEnv("ratelimit.enqueue_per_min", "RATELIMIT_ENQUEUE_PER_MIN")
	_ = viper.BindEnv("ratelimit.settings_per_min", "RATELIMIT_SETTINGS_PER_MIN")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.body_limit", 64)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("queue.max_concurrent", 3)
	viper.SetDefault("compressor.timeout", 120)
	viper.SetDefault("ratelimit.enqueue_per_min", 30)
	viper.SetDefault("ratelimit.settings_per_min", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			BodyLimit: viper.GetInt("server.body_limit"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Queue: QueueConfig{
			MaxConcurrent: viper.GetInt("queue.max_concurrent"),
		},
		Compressor: CompressorConfig{
			ServiceURL: viper.GetString("compressor.service_url"),
			Timeout:    viper.GetInt("compressor.timeout"),
		},
		RateLimit: RateLimitConfig{
			EnqueuePerMin:  viper.GetInt("ratelimit.enqueue_per_min"),
			SettingsPerMin: viper.GetInt("ratelimit.settings_per_min"),
		},
	}

	return cfg, nil
}

// Package config loads server configuration from the environment via
// viper, with an optional .env file for local development.
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig
	Cache CacheConfig
	CORS  CORSConfig
}

type AppConfig struct {
	Name   string
	Env    string
	Port   string
	DBPath string
}

type CacheConfig struct {
	// RefreshInterval is how often the background refresher rebuilds
	// every customer balance from the store. Zero disables it.
	RefreshInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "receivables-engine")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("DB_PATH", "receivables.db")
	viper.SetDefault("CACHE_REFRESH_SECONDS", 300)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	return &Config{
		App: AppConfig{
			Name:   viper.GetString("APP_NAME"),
			Env:    viper.GetString("APP_ENV"),
			Port:   viper.GetString("APP_PORT"),
			DBPath: viper.GetString("DB_PATH"),
		},
		Cache: CacheConfig{
			RefreshInterval: time.Duration(viper.GetInt("CACHE_REFRESH_SECONDS")) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		},
	}
}

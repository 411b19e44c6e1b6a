package config

import (
	"fmt"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa*/

type Config struct {
	Port          string `mapstructure:"PORT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	SourcesFile   string `mapstructure:"SOURCES_FILE"`

	RetryIntervalSeconds int `mapstructure:"RETRY_INTERVAL_SECONDS"`
	RetryBatchSize       int `mapstructure:"RETRY_BATCH_SIZE"`
	RetryConcurrency     int `mapstructure:"RETRY_CONCURRENCY"`

	DeadLetterRetentionDays int `mapstructure:"DEADLETTER_RETENTION_DAYS"`
	DeadLetterMaxReprocess  int `mapstructure:"DEADLETTER_MAX_REPROCESS"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SOURCES_FILE", "sources.yaml")
	viper.SetDefault("RETRY_INTERVAL_SECONDS", 30)
	viper.SetDefault("RETRY_BATCH_SIZE", 50)
	viper.SetDefault("RETRY_CONCURRENCY", 10)
	viper.SetDefault("DEADLETTER_RETENTION_DAYS", 30)
	viper.SetDefault("DEADLETTER_MAX_REPROCESS", 3)

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var config Config
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort          int    `mapstructure:"APP_PORT"`
	DatabasePath     string `mapstructure:"DATABASE_PATH"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	OllamaURL        string `mapstructure:"OLLAMA_URL"`
	FreeMessageLimit int    `mapstructure:"FREE_MESSAGE_LIMIT"`
	DefaultModel     string `mapstructure:"DEFAULT_MODEL"`
	SystemTemplate   string `mapstructure:"SYSTEM_TEMPLATE"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "/data/meetflow.db")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("OLLAMA_URL", "http://ollama:11434")
	viper.SetDefault("FREE_MESSAGE_LIMIT", 14)
	viper.SetDefault("DEFAULT_MODEL", "llama3.1")
	viper.SetDefault("SYSTEM_TEMPLATE", "system")
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Package config loads the bot's YAML configuration via viper, laying
// a config-file base with environment-variable and CLI-flag overrides
// the way elchinoo-stormdb's cobra root command does, rather than the
// source's bare serde_yaml::from_str (config.rs).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ChatPlatformConfig holds the bot's connection to the chat platform.
type ChatPlatformConfig struct {
	URL               string `mapstructure:"url"`
	BotToken          string `mapstructure:"bot_token"`
	SlashCommandToken string `mapstructure:"slash_command_token"`
	BotCallbackURL    string `mapstructure:"bot_callback_url"`
}

// StickerCategoryConfig is one named sticker source.
type StickerCategoryConfig struct {
	Name string   `mapstructure:"name"`
	CSV  []string `mapstructure:"csv"`
	JSON []string `mapstructure:"json"`
}

// StickersConfig lists every sticker category loaded at startup.
type StickersConfig struct {
	Categories []StickerCategoryConfig `mapstructure:"categories"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN        string `mapstructure:"dsn"`
	SchemaFile string `mapstructure:"schema_file"`
}

// AdminConfig lists the chat-platform user ids allowed into the DM
// admin console. Identity is checked by user_id only, never username.
type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids"`
}

// ServerConfig is the bound HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DialogConfig configures the dialog-state token signer.
type DialogConfig struct {
	StateSecret string `mapstructure:"state_secret"`
}

// Config is the bot's fully resolved configuration.
type Config struct {
	Server         ServerConfig       `mapstructure:"server"`
	ChatPlatform   ChatPlatformConfig `mapstructure:"chat_platform"`
	Stickers       StickersConfig     `mapstructure:"stickers"`
	Database       DatabaseConfig     `mapstructure:"database"`
	Admin          AdminConfig        `mapstructure:"admin"`
	Dialog         DialogConfig       `mapstructure:"dialog"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	LogLevel       string             `mapstructure:"log_level"`
	Debug          bool               `mapstructure:"debug"`
}

// Load builds a viper instance reading path (if non-empty), falling
// back to ./config.yaml, then GROUPBUY_-prefixed environment
// variables, applying defaults equivalent to the source's implicit
// ones.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GROUPBUY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("無法讀取配置檔案: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("無法解析配置檔案: %w", err)
	}

	if cfg.ChatPlatform.URL == "" {
		return nil, fmt.Errorf("chat_platform.url 為必要設定")
	}
	if cfg.ChatPlatform.BotToken == "" {
		return nil, fmt.Errorf("chat_platform.bot_token 為必要設定")
	}
	if cfg.Dialog.StateSecret == "" {
		return nil, fmt.Errorf("dialog.state_secret 為必要設定")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/groupbuy.db")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
}

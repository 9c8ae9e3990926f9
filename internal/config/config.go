package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

type Config struct {
	Port string
	// Store - sqlite или mongo
	Store string

	SQLitePath string

	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	LogLevel string
	LogFile  string

	TelegramToken string
}

// Addr - адрес для http.Server
func (c *Config) Addr() string {
	return ":" + c.Port
}

var ErrMissingMongoURI = errors.New("MONGODB_URI не задан")

// Load собирает конфигурацию из значений по умолчанию, файла .env в рабочем
// каталоге, необязательного YAML-файла configFile и переменных окружения.
// Переменные окружения имеют наивысший приоритет.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "3000")
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("sqlite_path", "taskhub.db")
	v.SetDefault("mongodb_uri", "")
	v.SetDefault("mongodb_database", "taskhub")
	v.SetDefault("mongo_transactions", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("telegram_token", "")

	if err := mergeDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", configFile, err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("port"),
		Store:             strings.ToLower(v.GetString("store")),
		SQLitePath:        v.GetString("sqlite_path"),
		MongoURI:          v.GetString("mongodb_uri"),
		MongoDatabase:     v.GetString("mongodb_database"),
		MongoTransactions: v.GetBool("mongo_transactions"),
		LogLevel:          v.GetString("log_level"),
		LogFile:           v.GetString("log_file"),
		TelegramToken:     v.GetString("telegram_token"),
	}
	return cfg, nil
}

// mergeDotEnv подмешивает .env, если он есть
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	v.SetConfigType("")
	return nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH не задан")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return ErrMissingMongoURI
		}
	default:
		return fmt.Errorf("неизвестное хранилище %q (ожидается %s или %s)", c.Store, StoreSQLite, StoreMongo)
	}
	if c.Port == "" {
		return errors.New("PORT не задан")
	}
	return nil
}

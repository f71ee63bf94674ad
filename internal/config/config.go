package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"evaluations/internal/evaluation"
	"evaluations/internal/logging"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Log        LogConfig
	Evaluation evaluation.Policy
	Sentiment  SentimentConfig
}

type DatabaseConfig struct {
	URL               string
	MigrationsEnabled bool
}

type ServerConfig struct {
	Address string
}

type LogConfig struct {
	Level string
}

type SentimentConfig struct {
	Enabled    bool
	Workers    int
	QueueSize  int
	MaxRetries uint64
	Backoff    time.Duration
}

// SetDefaults регистрирует значения по умолчанию и переменные окружения
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.migrations", true)
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("evaluation.peers", 2)
	v.SetDefault("evaluation.subordinateLimit", 0)
	v.SetDefault("evaluation.overallMode", evaluation.OverallMean)
	v.SetDefault("evaluation.weights.self", "20")
	v.SetDefault("evaluation.weights.supervisor", "50")
	v.SetDefault("evaluation.weights.peer", "20")
	v.SetDefault("evaluation.weights.subordinate", "10")

	v.SetDefault("sentiment.enabled", true)
	v.SetDefault("sentiment.workers", 2)
	v.SetDefault("sentiment.queueSize", 256)
	v.SetDefault("sentiment.maxRetries", 3)
	v.SetDefault("sentiment.backoff", "2s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Переменные окружения, оставшиеся от прежнего деплоя
	_ = v.BindEnv("database.url", "POSTGRES_CONN", "DATABASE_URL")
	_ = v.BindEnv("server.address", "SERVER_ADDRESS")
}

// Load читает config.yaml (если есть) и окружение
func Load(v *viper.Viper, paths ...string) (*Config, error) {
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logging.Log.Info("config.yaml not found, using defaults and environment")
	}

	return Read(v)
}

// Read собирает Config из уже настроенного viper
func Read(v *viper.Viper) (*Config, error) {
	weights, err := readWeights(v)
	if err != nil {
		return nil, err
	}

	conf := &Config{
		Database: DatabaseConfig{
			URL:               v.GetString("database.url"),
			MigrationsEnabled: v.GetBool("database.migrations"),
		},
		Server: ServerConfig{
			Address: v.GetString("server.address"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Evaluation: evaluation.Policy{
			PeerCount:        v.GetInt("evaluation.peers"),
			SubordinateLimit: v.GetInt("evaluation.subordinateLimit"),
			OverallMode:      v.GetString("evaluation.overallMode"),
			Weights:          weights,
		},
		Sentiment: SentimentConfig{
			Enabled:    v.GetBool("sentiment.enabled"),
			Workers:    v.GetInt("sentiment.workers"),
			QueueSize:  v.GetInt("sentiment.queueSize"),
			MaxRetries: v.GetUint64("sentiment.maxRetries"),
			Backoff:    v.GetDuration("sentiment.backoff"),
		},
	}

	if conf.Database.URL == "" {
		return nil, errors.New("database.url (POSTGRES_CONN) is not set")
	}
	if err := conf.Evaluation.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func readWeights(v *viper.Viper) (evaluation.Weights, error) {
	var w evaluation.Weights
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"evaluation.weights.self", &w.Self},
		{"evaluation.weights.supervisor", &w.Supervisor},
		{"evaluation.weights.peer", &w.Peer},
		{"evaluation.weights.subordinate", &w.Subordinate},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(v.GetString(f.key))
		if err != nil {
			return w, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = d
	}
	return w, nil
}

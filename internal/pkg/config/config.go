// Package config loads process configuration from .env files, environment variables and an optional
// config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/spf13/viper"
)

const envPrefix = "AREAMETRICS"

type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Resolver    ResolverConfig
	Aggregation AggregationConfig
	Snapshot    SnapshotConfig
	Redis       RedisConfig
	Log         LogConfig
}

type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

type DBConfig struct {
	Driver         string
	DSN            string
	MaxConns       int
	QueryTimeout   time.Duration
	CallTimeout    time.Duration
	ConnectRetries int
}

type ResolverConfig struct {
	SingleCountryFallback bool
	// Aliases maps a level name to extra short code -> canonical name entries.
	Aliases map[string]map[string]string
}

type AggregationConfig struct {
	SumCodes    []string
	AvgCodes    []string
	DefaultKind string
	Fanout      int
}

type SnapshotConfig struct {
	Concurrent bool
	Timeout    time.Duration
	StateTTL   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(constants.ViperServerAddr, ":8080")
	v.SetDefault(constants.ViperServerCORSOrigins, []string{"http://localhost:3000"})

	v.SetDefault(constants.ViperDBDriver, "sqlite")
	v.SetDefault(constants.ViperDBDSN, "areametrics.db")
	v.SetDefault(constants.ViperDBMaxConns, 10)
	v.SetDefault(constants.ViperDBQueryTimeout, 5*time.Second)
	v.SetDefault(constants.ViperDBCallTimeout, 15*time.Second)
	v.SetDefault(constants.ViperDBConnectRetries, 5)

	v.SetDefault(constants.ViperResolverSingleCountryFallback, true)

	v.SetDefault(constants.ViperAggregationDefaultKind, "")
	v.SetDefault(constants.ViperAggregationFanout, 8)

	v.SetDefault(constants.ViperSnapshotConcurrent, true)
	v.SetDefault(constants.ViperSnapshotTimeout, 5*time.Minute)
	v.SetDefault(constants.ViperSnapshotStateTTL, 30*time.Second)

	v.SetDefault(constants.ViperRedisDB, 0)
	v.SetDefault(constants.ViperRedisTTL, 10*time.Minute)

	v.SetDefault(constants.ViperLogLevel, "info")
	v.SetDefault(constants.ViperLogFormat, "json")
}

// Load reads .env and .env.local (the latter overriding), then the environment and configFile if set.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("viper.ReadInConfig: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:        v.GetString(constants.ViperServerAddr),
			CORSOrigins: v.GetStringSlice(constants.ViperServerCORSOrigins),
		},
		DB: DBConfig{
			Driver:         strings.ToLower(v.GetString(constants.ViperDBDriver)),
			DSN:            v.GetString(constants.ViperDBDSN),
			MaxConns:       v.GetInt(constants.ViperDBMaxConns),
			QueryTimeout:   v.GetDuration(constants.ViperDBQueryTimeout),
			CallTimeout:    v.GetDuration(constants.ViperDBCallTimeout),
			ConnectRetries: v.GetInt(constants.ViperDBConnectRetries),
		},
		Resolver: ResolverConfig{
			SingleCountryFallback: v.GetBool(constants.ViperResolverSingleCountryFallback),
			Aliases:               make(map[string]map[string]string),
		},
		Aggregation: AggregationConfig{
			SumCodes:    v.GetStringSlice(constants.ViperAggregationSumCodes),
			AvgCodes:    v.GetStringSlice(constants.ViperAggregationAvgCodes),
			DefaultKind: strings.ToLower(v.GetString(constants.ViperAggregationDefaultKind)),
			Fanout:      v.GetInt(constants.ViperAggregationFanout),
		},
		Snapshot: SnapshotConfig{
			Concurrent: v.GetBool(constants.ViperSnapshotConcurrent),
			Timeout:    v.GetDuration(constants.ViperSnapshotTimeout),
			StateTTL:   v.GetDuration(constants.ViperSnapshotStateTTL),
		},
		Redis: RedisConfig{
			Addr:     v.GetString(constants.ViperRedisAddr),
			Password: v.GetString(constants.ViperRedisPassword),
			DB:       v.GetInt(constants.ViperRedisDB),
			TTL:      v.GetDuration(constants.ViperRedisTTL),
		},
		Log: LogConfig{
			Level:  v.GetString(constants.ViperLogLevel),
			Format: v.GetString(constants.ViperLogFormat),
		},
	}

	for level := range v.GetStringMap(constants.ViperResolverAliases) {
		cfg.Resolver.Aliases[level] = v.GetStringMapString(constants.ViperResolverAliases + "." + level)
	}

	switch cfg.DB.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported db.driver %q", cfg.DB.Driver)
	}

	switch cfg.Aggregation.DefaultKind {
	case "", "avg", "sum":
	default:
		return nil, fmt.Errorf("unsupported aggregation.default_kind %q", cfg.Aggregation.DefaultKind)
	}

	return cfg, nil
}

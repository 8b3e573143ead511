package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devicewatch/devicewatch/internal/api/http"
	"github.com/devicewatch/devicewatch/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Http     http.Config
	Database db.Config
	Redis    RedisConfig
	JWT      JWTConfig
	Health   HealthConfig
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type JWTConfig struct {
	Secret                string `mapstructure:"secret"`
	AccessTokenTTLMinutes int    `mapstructure:"access_token_ttl_minutes"`
	RefreshTokenTTLDays   int    `mapstructure:"refresh_token_ttl_days"`
}

type HealthConfig struct {
	CPUWeight          float64 `mapstructure:"cpu_weight"`
	RAMWeight          float64 `mapstructure:"ram_weight"`
	TemperatureWeight  float64 `mapstructure:"temperature_weight"`
	DiskWeight         float64 `mapstructure:"disk_weight"`
	ConnectivityWeight float64 `mapstructure:"connectivity_weight"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/devicewatch-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	viper.SetDefault("http.port", 8000)
	viper.SetDefault("jwt.access_token_ttl_minutes", 30)
	viper.SetDefault("jwt.refresh_token_ttl_days", 7)
	viper.SetDefault("redis.ttl_seconds", 300)
	viper.SetDefault("health.cpu_weight", 0.25)
	viper.SetDefault("health.ram_weight", 0.25)
	viper.SetDefault("health.temperature_weight", 0.30)
	viper.SetDefault("health.disk_weight", 0.15)
	viper.SetDefault("health.connectivity_weight", 0.05)

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

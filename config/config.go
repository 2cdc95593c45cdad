package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// AppConfig holds the peer/tracker settings shared by both cmd/filenet
// subcommands. Not every field is used by every subcommand.
type AppConfig struct {
	TrackerAddr       string `mapstructure:"tracker_addr"`
	PeerName          string `mapstructure:"peer_name"`
	StorageDir        string `mapstructure:"storage_dir"`
	HeartbeatSeconds  int    `mapstructure:"heartbeat_seconds"`
	FetchTimeoutSec   int    `mapstructure:"fetch_timeout_seconds"`
	RetryBackoffSec   int    `mapstructure:"retry_backoff_seconds"`
	MonitorFastPeriod int    `mapstructure:"monitor_fast_period_seconds"`
	MonitorSlowPeriod int    `mapstructure:"monitor_slow_period_seconds"`
}

var Config *AppConfig

func LoadConfig(path string) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	viper.SetDefault("tracker_addr", "127.0.0.1:9500")
	viper.SetDefault("peer_name", "")
	viper.SetDefault("storage_dir", ".")
	viper.SetDefault("heartbeat_seconds", 60)
	viper.SetDefault("fetch_timeout_seconds", 5)
	viper.SetDefault("retry_backoff_seconds", 3)
	viper.SetDefault("monitor_fast_period_seconds", 1)
	viper.SetDefault("monitor_slow_period_seconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("⚠️ Could not read config file, using defaults: %v", err)
	}

	var appConfig AppConfig
	if err := viper.Unmarshal(&appConfig); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	Config = &appConfig

	fmt.Println("✅ Configuration loaded successfully.")
}

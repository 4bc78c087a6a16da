package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the gateway application configuration
type Config struct {
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Bridge       BridgeConfig       `mapstructure:"bridge"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Backend      BackendConfig      `mapstructure:"backend"`
	API          APIConfig          `mapstructure:"api"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// GatewayConfig identifies this gateway on the radio network
type GatewayConfig struct {
	ID           string `mapstructure:"id"`
	NamePrefix   string `mapstructure:"name_prefix"`
	TickInterval int    `mapstructure:"tick_interval_ms"`
}

// BridgeConfig represents the connection to the local radio bridge broker
type BridgeConfig struct {
	Broker         string `mapstructure:"broker"`
	ClientID       string `mapstructure:"client_id"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MeshTopic      string `mapstructure:"mesh_topic"`
	LoraTopic      string `mapstructure:"lora_topic"`
	LoraRearmTopic string `mapstructure:"lora_rearm_topic"`
	LoraDecodeLang string `mapstructure:"lora_decode_lang"`
	LoraScriptPath string `mapstructure:"lora_script_path"`
	LoraScriptCode string `mapstructure:"lora_script_code"`
}

// ConnectivityConfig tunes the uplink state machine
type ConnectivityConfig struct {
	UplinkLabel  string `mapstructure:"uplink_label"`
	LocalLabel   string `mapstructure:"local_label"`
	UplinkAddr   string `mapstructure:"uplink_addr"`
	ProbeAddr    string `mapstructure:"probe_addr"`
	ProbeTimeout int    `mapstructure:"probe_timeout_ms"`
}

// BackendConfig represents the remote collector endpoints
type BackendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	DataPath   string `mapstructure:"data_path"`
	StatusPath string `mapstructure:"status_path"`
	HealthPath string `mapstructure:"health_path"`
}

// APIConfig represents the local status API listener
type APIConfig struct {
	Listen  string `mapstructure:"listen"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggerConfig represents the logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// ConfigChangeCallback is invoked with the re-parsed configuration after a change
type ConfigChangeCallback func(cfg *Config) error

// LoadConfig loads the configuration file from the given path
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults fills in unset fields with working defaults
func applyDefaults(cfg *Config) {
	if cfg.Gateway.ID == "" {
		cfg.Gateway.ID = "gateway-01"
	}
	if cfg.Gateway.NamePrefix == "" {
		cfg.Gateway.NamePrefix = "gateway-"
	}
	if cfg.Gateway.TickInterval <= 0 {
		cfg.Gateway.TickInterval = 100
	}
	if cfg.Bridge.Broker == "" {
		cfg.Bridge.Broker = "tcp://localhost:1883"
	}
	if cfg.Bridge.MeshTopic == "" {
		cfg.Bridge.MeshTopic = "radio/mesh/frames"
	}
	if cfg.Bridge.LoraTopic == "" {
		cfg.Bridge.LoraTopic = "radio/lora/frames"
	}
	if cfg.Bridge.LoraRearmTopic == "" {
		cfg.Bridge.LoraRearmTopic = "radio/lora/rearm"
	}
	if cfg.Connectivity.LocalLabel == "" {
		cfg.Connectivity.LocalLabel = "Greenhouse-Gateway"
	}
	if cfg.Connectivity.ProbeAddr == "" {
		cfg.Connectivity.ProbeAddr = "8.8.8.8:53"
	}
	if cfg.Connectivity.UplinkAddr == "" {
		// Without an explicit uplink check address, the probe endpoint
		// doubles as the link check
		cfg.Connectivity.UplinkAddr = cfg.Connectivity.ProbeAddr
	}
	if cfg.Connectivity.UplinkLabel == "" {
		cfg.Connectivity.UplinkLabel = "uplink"
	}
	if cfg.Connectivity.ProbeTimeout <= 0 {
		cfg.Connectivity.ProbeTimeout = 200
	}
	if cfg.Backend.DataPath == "" {
		cfg.Backend.DataPath = "/api/sensors/data"
	}
	if cfg.Backend.StatusPath == "" {
		cfg.Backend.StatusPath = "/api/gateway/status"
	}
	if cfg.Backend.HealthPath == "" {
		cfg.Backend.HealthPath = "/health"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = ":8080"
	}
}

// WatchConfig watches the configuration file for changes and invokes the callback
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	viper.SetConfigFile(absPath)
	viper.WatchConfig()

	// Debounce to avoid firing several times for one editor save
	var lastChangeTime time.Time
	debounceInterval := 2 * time.Second

	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write {
			return
		}

		now := time.Now()
		if now.Sub(lastChangeTime) < debounceInterval {
			return
		}
		lastChangeTime = now

		log.Printf("configuration file changed: %s", e.Name)

		var newConfig Config
		if err := viper.Unmarshal(&newConfig); err != nil {
			log.Printf("failed to parse updated configuration: %v", err)
			return
		}
		applyDefaults(&newConfig)

		if err := callback(&newConfig); err != nil {
			log.Printf("failed to apply new configuration: %v", err)
			return
		}

		log.Println("configuration updated and applied")
	})

	return nil
}

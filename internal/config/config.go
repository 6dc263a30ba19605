package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type WorkerConfig struct {
	// APIBaseURL is the control surface the worker reports to.
	APIBaseURL string `mapstructure:"api_base_url"`
	// PollInterval is the sleep between empty claim polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ProgressEvery is the checkpoint cadence: a PROGRESS event plus a
	// checkpoint/metrics write every Nth row.
	ProgressEvery int `mapstructure:"progress_every"`
	// CSVPathOverride, when set, wins over the path in the source config.
	CSVPathOverride string `mapstructure:"csv_path_override"`
	// RequestTimeout bounds each call to the control surface.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Config struct {
	DatabaseURL string       `mapstructure:"database_url"`
	ServerPort  string       `mapstructure:"server_port"`
	CORSOrigins []string     `mapstructure:"cors_origins"`
	Worker      WorkerConfig `mapstructure:"worker"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
// Environment variables override file values (WORKER_POLL_INTERVAL etc.).
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as env-var bindings for AutomaticEnv.
	v.SetDefault("database_url", "")
	v.SetDefault("server_port", "")
	v.SetDefault("worker.api_base_url", "")
	v.SetDefault("worker.poll_interval", "0s")
	v.SetDefault("worker.progress_every", 0)
	v.SetDefault("worker.csv_path_override", "")
	v.SetDefault("worker.request_timeout", "0s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if config.Worker.APIBaseURL == "" {
		config.Worker.APIBaseURL = "http://127.0.0.1:" + config.ServerPort
	}
	if config.Worker.PollInterval == 0 {
		config.Worker.PollInterval = 2 * time.Second
	}
	if config.Worker.ProgressEvery <= 0 {
		config.Worker.ProgressEvery = 2
	}
	if config.Worker.RequestTimeout == 0 {
		config.Worker.RequestTimeout = 10 * time.Second
	}

	// database_url is only required by the server; the worker runs without it.
	return &config
}

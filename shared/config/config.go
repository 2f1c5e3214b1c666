package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Client   Client   `yaml:"client"`
	Transfer Transfer `yaml:"transfer"`
	Logging  Logging  `yaml:"logging"`
}

type Server struct {
	UDPAddr         string `yaml:"udp_addr" validate:"required"`
	TCPAddr         string `yaml:"tcp_addr" validate:"required"`
	MetricsAddr     string `yaml:"metrics_addr"` // empty disables the metrics listener
	WorkerPoolSize  int    `yaml:"worker_pool_size" validate:"min=1"`
	AcceptTimeoutMs int    `yaml:"accept_timeout_ms" validate:"min=1"`
	DataDir         string `yaml:"data_dir" validate:"required"`
}

type Client struct {
	ServerAddr     string `yaml:"server_addr" validate:"required"`
	ReplyTimeoutMs int    `yaml:"reply_timeout_ms" validate:"min=1"`
	MaxRetries     int    `yaml:"max_retries" validate:"min=1"`
	AckTimeoutMs   int    `yaml:"ack_timeout_ms" validate:"min=1"`
	DownloadDir    string `yaml:"download_dir"`
}

type Transfer struct {
	MaxFileSize int `yaml:"max_file_size" validate:"min=1"`
	BufferSize  int `yaml:"buffer_size" validate:"min=1"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func (s *Server) AcceptTimeout() time.Duration {
	return time.Duration(s.AcceptTimeoutMs) * time.Millisecond
}

func (c *Client) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMs) * time.Millisecond
}

func (c *Client) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMs) * time.Millisecond
}

// Default returns the reference sizing. Loading a config file overrides only
// the fields it sets.
func Default() *Config {
	return &Config{
		Server: Server{
			UDPAddr:         ":9433",
			TCPAddr:         ":9433",
			MetricsAddr:     "",
			WorkerPoolSize:  10,
			AcceptTimeoutMs: 1000,
			DataDir:         "data",
		},
		Client: Client{
			ServerAddr:     "127.0.0.1:9433",
			ReplyTimeoutMs: 600,
			MaxRetries:     16,
			AckTimeoutMs:   600,
			DownloadDir:    ".",
		},
		Transfer: Transfer{
			MaxFileSize: 102400,
			BufferSize:  4096,
		},
		Logging: Logging{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads public.yaml from the given folder on top of the defaults and
// validates the result.
func Load(configFolder string) (*Config, error) {
	configPath := path.Join(configFolder, "public.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(configFile, cfg); err != nil {
		return nil, fmt.Errorf("can't unmarshal config file: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

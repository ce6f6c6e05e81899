package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	once     sync.Once
	instance *Config
)

// ComponentConfig содержит базовые сетевые настройки для запуска сервиса
type ComponentConfig struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Debug    bool   `yaml:"debug"`
}

// StorageConfig путь к файлу SQLite каталога
type StorageConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig настройки пакетного импорта
type IngestConfig struct {
	Threads   int    `yaml:"threads"`
	WarnDir   string `yaml:"warn_dir"`
	OutputDir string `yaml:"output_dir"`
	IndexName string `yaml:"index_name"`
	Rescan    bool   `yaml:"rescan"`
}

// MetricsConfig настройки для экспортера метрик
type MetricsConfig struct {
	Port           int    `yaml:"port"`
	PushgatewayURL string `yaml:"pushgateway_url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
	JSON  bool   `yaml:"json"`
}

// LimitsConfig ограничение частоты запросов к HTTP API
type LimitsConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	Whitelist string `yaml:"whitelist"`
}

// CLIConfig настройки для CLI (не сервис)
type CLIConfig struct {
	Debug bool `yaml:"debug"`
}

// Config корень дерева конфигурации, соответствующий pubcat.yaml
type Config struct {
	HTTP    ComponentConfig `yaml:"http"`
	GRPC    ComponentConfig `yaml:"grpc"`
	Storage StorageConfig   `yaml:"storage"`
	Ingest  IngestConfig    `yaml:"ingest"`
	Metrics MetricsConfig   `yaml:"metrics"`
	Logging LoggingConfig   `yaml:"logging"`
	Limits  LimitsConfig    `yaml:"limits"`
	Auth    AuthConfig      `yaml:"auth"`
	CLI     CLIConfig       `yaml:"cli"`
}

// envOverrides значения из окружения (PUBCAT_*), перекрывающие файл
type envOverrides struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR"`
	GRPCAddr  string `envconfig:"GRPC_ADDR"`
	DBPath    string `envconfig:"DB_PATH"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogPath   string `envconfig:"LOG_PATH"`
	LogJSON   *bool  `envconfig:"LOG_JSON"`
	Threads   int    `envconfig:"THREADS"`
	Whitelist string `envconfig:"WHITELIST"`
}

type invalidErr string

func (e invalidErr) Error() string { return "config: " + string(e) }

func ErrInvalid(msg string) error { return invalidErr(msg) }

// Default returns the configuration used when the file leaves a value unset.
func Default() Config {
	return Config{
		HTTP:    ComponentConfig{Protocol: "http", Host: "localhost", Port: 8080},
		GRPC:    ComponentConfig{Protocol: "grpc", Host: "localhost", Port: 50051},
		Storage: StorageConfig{Path: "pubcat.db"},
		Ingest:  IngestConfig{Threads: 4, IndexName: "pubcat"},
		Logging: LoggingConfig{Level: "info"},
		Limits:  LimitsConfig{RPS: 50, Burst: 100},
	}
}

// Get возвращает инициализированный объект конфигурации (Singleton)
func Get() *Config {
	once.Do(func() {
		path := os.Getenv("PUBCAT_CONFIG")
		if path == "" {
			path = "pubcat.yaml"
		}

		cfg, err := Load(path)
		if err != nil {
			log.Fatalf("[CONFIG ERROR] %v", err)
		}
		instance = &cfg
	})
	return instance
}

// Load читает YAML, накладывает переменные окружения и проверяет результат.
// Отсутствующий файл не ошибка: используются значения по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(f, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("pubcat", &env); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	if env.HTTPAddr != "" {
		if err := c.HTTP.SetAddress(env.HTTPAddr); err != nil {
			return err
		}
	}
	if env.GRPCAddr != "" {
		if err := c.GRPC.SetAddress(env.GRPCAddr); err != nil {
			return err
		}
	}
	if env.DBPath != "" {
		c.Storage.Path = env.DBPath
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogPath != "" {
		c.Logging.Path = env.LogPath
	}
	if env.LogJSON != nil {
		c.Logging.JSON = *env.LogJSON
	}
	if env.Threads > 0 {
		c.Ingest.Threads = env.Threads
	}
	if env.Whitelist != "" {
		c.Auth.Whitelist = env.Whitelist
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return ErrInvalid("storage.path is required")
	}
	if c.HTTP.Port <= 0 || c.GRPC.Port <= 0 {
		return ErrInvalid("http.port and grpc.port must be positive")
	}
	if c.Ingest.Threads < 1 {
		return ErrInvalid("ingest.threads must be at least 1")
	}
	return nil
}

// Address возвращает строку host:port (удобно для gRPC)
func (c ComponentConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FullURL возвращает строку protocol://host:port (удобно для HTTP/URL)
func (c ComponentConfig) FullURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}

// SetAddress разбирает host:port; пустой host допустим (":8080").
func (c *ComponentConfig) SetAddress(addr string) error {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return ErrInvalid(fmt.Sprintf("bad address %q: %v", addr, err))
	}
	c.Host, c.Port = host, port
	return nil
}

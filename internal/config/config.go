package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// ProviderConfig holds the screening provider deployments. Both environments
// are configured up front; every API call names the one it targets.
type ProviderConfig struct {
	Sandbox    ProviderEndpointConfig `yaml:"sandbox"`
	Production ProviderEndpointConfig `yaml:"production"`
	Timeout    int                    `yaml:"timeout"` // seconds
}

// ProviderEndpointConfig is one provider deployment
type ProviderEndpointConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// JWTConfig token signing configuration
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // IP addresses or CIDR ranges
}

var AppConfig *Config

// LoadConfig loads the configuration file and applies environment overrides
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			logrus.Info("using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	if config.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is not configured (set jwt.secret or JWT_SECRET)")
	}

	logrus.WithFields(logrus.Fields{
		"config":              configPath,
		"server":              fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		"sandbox_provider":    config.Provider.Sandbox.BaseURL,
		"production_provider": config.Provider.Production.BaseURL,
		"nats":                config.NATS.URL != "",
		"admin_ip_whitelist":  len(config.Admin.AllowedIPs),
	}).Info("configuration loaded")

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.Provider.Timeout <= 0 {
		config.Provider.Timeout = 30
	}
	if config.JWT.ExpiryHours <= 0 {
		config.JWT.ExpiryHours = 24
	}
	if config.NATS.Timeout <= 0 {
		config.NATS.Timeout = 10
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if url := os.Getenv("PROVIDER_SANDBOX_URL"); url != "" {
		config.Provider.Sandbox.BaseURL = url
	}
	if key := os.Getenv("PROVIDER_SANDBOX_API_KEY"); key != "" {
		config.Provider.Sandbox.APIKey = key
	}
	if url := os.Getenv("PROVIDER_PRODUCTION_URL"); url != "" {
		config.Provider.Production.BaseURL = url
	}
	if key := os.Getenv("PROVIDER_PRODUCTION_API_KEY"); key != "" {
		config.Provider.Production.APIKey = key
	}
	if timeout := os.Getenv("PROVIDER_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Provider.Timeout = t
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}

	if adminIPs := os.Getenv("ADMIN_ALLOWED_IPS"); adminIPs != "" {
		ips := strings.Split(adminIPs, ",")
		config.Admin.AllowedIPs = make([]string, 0, len(ips))
		for _, ip := range ips {
			if trimmed := strings.TrimSpace(ip); trimmed != "" {
				config.Admin.AllowedIPs = append(config.Admin.AllowedIPs, trimmed)
			}
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SMOOSHR_DB_DRIVER.
const EnvPrefix = "SMOOSHR"

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	DB struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		Path     string `mapstructure:"path"`
	} `mapstructure:"db"`
	Auth struct {
		Issuer          string `mapstructure:"issuer"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Run struct {
		ImplicitBaselineValidation bool  `mapstructure:"implicit_baseline_validation"`
		MaxUploadBytes             int64 `mapstructure:"max_upload_bytes"`
	} `mapstructure:"run"`
	Client struct {
		BaseURL       string        `mapstructure:"base_url"`
		Token         string        `mapstructure:"token"`
		APIKey        string        `mapstructure:"api_key"`
		ClientID      string        `mapstructure:"client_id"`
		ClientSecret  string        `mapstructure:"client_secret"`
		TokenURL      string        `mapstructure:"token_url"`
		AutosaveDelay time.Duration `mapstructure:"autosave_delay"`
	} `mapstructure:"client"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

// AuthBypassed reports whether requests are authenticated as the dev user.
func (c *Config) AuthBypassed() bool {
	return c.IsDev() && c.DevModeBypass
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "smooshr")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "smooshr")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "smooshr.db")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.swagger_client_id", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{"localhost"})
	v.SetDefault("run.implicit_baseline_validation", true)
	v.SetDefault("run.max_upload_bytes", 32<<20)
	v.SetDefault("client.base_url", "http://localhost:8000/api")
	v.SetDefault("client.token", "")
	v.SetDefault("client.api_key", "")
	v.SetDefault("client.client_id", "")
	v.SetDefault("client.client_secret", "")
	v.SetDefault("client.token_url", "")
	v.SetDefault("client.autosave_delay", "3s")
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path searches for config.yaml in . and ./config; a missing file there
// is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)
	config.Client.BaseURL = strings.TrimRight(config.Client.BaseURL, "/")
	if config.Auth.SwaggerClientID == "" {
		config.Auth.SwaggerClientID = config.Auth.ClientID
	}

	return &config, nil
}

// normalizeIssuer strips surrounding space and a trailing slash so the issuer
// matches the iss claim of tokens.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}

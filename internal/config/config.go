package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "NOTESAPP"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "notes.db"
	defaultLogLevel     = "info"
	defaultSMTPHost     = "smtp.gmail.com"
	defaultSMTPPort     = 587
)

// AppConfig captures runtime configuration for the API server and the
// digest dispatcher.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPSecret string
	MailFrom   string
	MailTo     string

	// DigestTriggerToken protects the HTTP digest trigger endpoint. When
	// empty the endpoint is not registered at all.
	DigestTriggerToken string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("smtp.host", defaultSMTPHost)
	configViper.SetDefault("smtp.port", defaultSMTPPort)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		SMTPHost:           configViper.GetString("smtp.host"),
		SMTPPort:           configViper.GetInt("smtp.port"),
		SMTPUser:           configViper.GetString("smtp.user"),
		SMTPSecret:         configViper.GetString("smtp.secret"),
		MailFrom:           configViper.GetString("mail.from"),
		MailTo:             configViper.GetString("mail.to"),
		DigestTriggerToken: configViper.GetString("digest.trigger_token"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("smtp.port must be a valid port number")
	}
	return nil
}

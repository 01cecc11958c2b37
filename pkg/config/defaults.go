package config

import (
	"time"

	"github.com/dtool-infra/dtool-config-generator/pkg/store"
)

// Default returns a configuration populated with default values.
// Secrets and service credentials are intentionally left empty and
// must come from the config file or environment.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ExternalURL:     "http://localhost:8080",
			SessionDuration: 12 * time.Hour,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Directory: DirectoryConfig{
			Host:         "ldap://localhost:389",
			BaseDN:       "dc=example,dc=org",
			UserDN:       "ou=users",
			LoginAttr:    "uid",
			ObjectFilter: "(objectclass=*)",
		},
		StorageGrid: StorageGridConfig{
			KeyValidity: 86400 * time.Second,
		},
		Confirmation: ConfirmationConfig{
			Validity: 24 * time.Hour,
		},
		Mail: MailConfig{
			Host: "localhost",
			Port: 587,
		},
		Generate: GenerateConfig{
			Bucket:        "dtool-bucket",
			S3Endpoint:    "http://localhost:9000",
			DatasetPrefix: "u/",
		},
	}
}

// ApplyDefaults fills zero values with defaults after unmarshalling.
func ApplyDefaults(cfg *Config) {
	def := Default()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = def.Server.ListenAddr
	}
	if cfg.Server.ExternalURL == "" {
		cfg.Server.ExternalURL = def.Server.ExternalURL
	}
	if cfg.Server.SessionDuration == 0 {
		cfg.Server.SessionDuration = def.Server.SessionDuration
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	cfg.Database.ApplyDefaults()

	if cfg.Directory.LoginAttr == "" {
		cfg.Directory.LoginAttr = def.Directory.LoginAttr
	}
	if cfg.Directory.ObjectFilter == "" {
		cfg.Directory.ObjectFilter = def.Directory.ObjectFilter
	}

	if cfg.StorageGrid.KeyValidity == 0 {
		cfg.StorageGrid.KeyValidity = def.StorageGrid.KeyValidity
	}

	if cfg.Confirmation.Validity == 0 {
		cfg.Confirmation.Validity = def.Confirmation.Validity
	}

	if cfg.Mail.Host == "" {
		cfg.Mail.Host = def.Mail.Host
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = def.Mail.Port
	}

	if cfg.Generate.Bucket == "" {
		cfg.Generate.Bucket = def.Generate.Bucket
	}
	if cfg.Generate.S3Endpoint == "" {
		cfg.Generate.S3Endpoint = def.Generate.S3Endpoint
	}
	if cfg.Generate.DatasetPrefix == "" {
		cfg.Generate.DatasetPrefix = def.Generate.DatasetPrefix
	}
}

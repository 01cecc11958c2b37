// Package config loads and validates the dtoolcfg configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DCG_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dtool-infra/dtool-config-generator/pkg/store"
)

// Config represents the full dtoolcfg configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server configures the HTTP server and session handling.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures user account persistence.
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Directory configures the LDAP directory service used for
	// authentication.
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`

	// StorageGrid configures the object-storage identity provider.
	StorageGrid StorageGridConfig `mapstructure:"storagegrid" yaml:"storagegrid"`

	// Registry configures the dataset-lookup registry service.
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`

	// Mail configures the outgoing SMTP connection.
	Mail MailConfig `mapstructure:"mail" yaml:"mail"`

	// Confirmation configures the admin-approval workflow.
	Confirmation ConfirmationConfig `mapstructure:"confirmation" yaml:"confirmation"`

	// Admin names the bootstrap admin that is force-confirmed on
	// startup.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Generate configures the rendered config/readme artifacts.
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig configures the HTTP listener and session cookies.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// ExternalURL is the public base URL used when building
	// confirmation links (no trailing slash).
	ExternalURL string `mapstructure:"external_url" validate:"required,url" yaml:"external_url"`

	// SessionSecret signs session cookies. At least 32 characters.
	SessionSecret string `mapstructure:"session_secret" validate:"required,min=32" yaml:"session_secret"`

	// SessionDuration is the session cookie lifetime.
	SessionDuration time.Duration `mapstructure:"session_duration" validate:"required,gt=0" yaml:"session_duration"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// DirectoryConfig configures the LDAP directory service.
type DirectoryConfig struct {
	// Host is the LDAP URL, e.g. ldap://localhost:1389.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// BaseDN is the directory base, e.g. dc=example,dc=org.
	BaseDN string `mapstructure:"base_dn" validate:"required" yaml:"base_dn"`

	// UserDN is prepended to the base DN for user searches,
	// e.g. ou=users.
	UserDN string `mapstructure:"user_dn" yaml:"user_dn"`

	// LoginAttr is the attribute users authenticate with, e.g. uid.
	LoginAttr string `mapstructure:"login_attr" validate:"required" yaml:"login_attr"`

	// BindDN/BindPassword are optional service credentials for the
	// initial search bind. Empty means anonymous bind.
	BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password"`

	// ObjectFilter restricts the user search, e.g. (objectclass=*).
	ObjectFilter string `mapstructure:"object_filter" yaml:"object_filter"`

	// StartTLS upgrades the connection before binding.
	StartTLS bool `mapstructure:"start_tls" yaml:"start_tls"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// StorageGridConfig configures the object-storage identity provider.
type StorageGridConfig struct {
	// Host is the management API host (no scheme).
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// AccountID, Username and Password authenticate the management
	// account used to administer tenant users and keys.
	AccountID string `mapstructure:"account_id" validate:"required" yaml:"account_id"`
	Username  string `mapstructure:"username" validate:"required" yaml:"username"`
	Password  string `mapstructure:"password" validate:"required" yaml:"password"`

	// DefaultGroupUUID is an optional group every synced remote
	// identity is made a member of.
	DefaultGroupUUID string `mapstructure:"default_group_uuid" yaml:"default_group_uuid"`

	// KeyValidity is the lifetime of newly issued S3 access keys.
	KeyValidity time.Duration `mapstructure:"key_validity" validate:"required,gt=0" yaml:"key_validity"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// RegistryConfig configures the dataset-lookup registry service.
type RegistryConfig struct {
	// URL is the registry base URL.
	URL string `mapstructure:"url" validate:"required,url" yaml:"url"`

	// TokenURL is the token generator endpoint exchanged against for
	// a bearer token.
	TokenURL string `mapstructure:"token_url" validate:"required,url" yaml:"token_url"`

	Username string `mapstructure:"username" validate:"required" yaml:"username"`
	Password string `mapstructure:"password" validate:"required" yaml:"password"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// RegisterUserOnConfirmation registers a user at the registry
	// whenever the admin confirms them.
	RegisterUserOnConfirmation bool `mapstructure:"register_user_on_confirmation" yaml:"register_user_on_confirmation"`

	// GrantDefaultSearchPermissionsOnConfirmation grants search
	// permissions on DefaultSearchPermissions on confirmation.
	GrantDefaultSearchPermissionsOnConfirmation bool `mapstructure:"grant_default_search_permissions_on_confirmation" yaml:"grant_default_search_permissions_on_confirmation"`

	// DefaultSearchPermissions lists base URIs new users may search.
	DefaultSearchPermissions []string `mapstructure:"default_search_permissions" yaml:"default_search_permissions"`
}

// MailConfig configures outgoing mail.
type MailConfig struct {
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"required,gt=0" yaml:"port"`
	UseTLS   bool   `mapstructure:"use_tls" yaml:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// SuppressSend drops outgoing mail instead of delivering it.
	// Intended for tests and development.
	SuppressSend bool `mapstructure:"suppress_send" yaml:"suppress_send"`
}

// ConfirmationConfig configures the admin-approval workflow.
type ConfirmationConfig struct {
	// Secret signs confirmation tokens. At least 32 characters.
	Secret string `mapstructure:"secret" validate:"required,min=32" yaml:"secret"`

	// Validity is the confirmation link lifetime.
	Validity time.Duration `mapstructure:"validity" validate:"required,gt=0" yaml:"validity"`

	// Sender and Recipient of the confirmation mail. The recipient is
	// the administrative mailbox, not the user.
	Sender    string `mapstructure:"sender" validate:"required,email" yaml:"sender"`
	Recipient string `mapstructure:"recipient" validate:"required,email" yaml:"recipient"`
}

// AdminConfig names the bootstrap admin.
type AdminConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	UserID   int    `mapstructure:"user_id" yaml:"user_id"`
}

// GenerateConfig configures the rendered artifacts.
type GenerateConfig struct {
	// ConfigTemplate and ReadmeTemplate are optional paths to external
	// template files. Empty means the embedded defaults.
	ConfigTemplate string `mapstructure:"config_template" yaml:"config_template"`
	ReadmeTemplate string `mapstructure:"readme_template" yaml:"readme_template"`

	// Bucket, S3Endpoint and DatasetPrefix parameterize the default
	// templates.
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	S3Endpoint    string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	DatasetPrefix string `mapstructure:"dataset_prefix" yaml:"dataset_prefix"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if configFileFound {
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return cfg.Database.Validate()
}

// Save writes the configuration to the given path in YAML format.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file carries directory and provider credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config
// file settings. Environment variables use the DCG_ prefix, e.g.
// DCG_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DCG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/dtoolcfg or the fallback
// under the user's home directory.
func DefaultConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "dtoolcfg")
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "24h" or plain integer
// seconds to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v) * time.Second, nil
		default:
			return data, nil
		}
	}
}

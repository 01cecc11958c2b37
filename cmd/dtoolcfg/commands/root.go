// Package commands implements the dtoolcfg CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/config"
	"github.com/dtool-infra/dtool-config-generator/pkg/credentials"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
	"github.com/dtool-infra/dtool-config-generator/pkg/registry"
	"github.com/dtool-infra/dtool-config-generator/pkg/storagegrid"
	"github.com/dtool-infra/dtool-config-generator/pkg/store"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dtoolcfg",
	Short: "dtool config generator - per-user data infrastructure credentials",
	Long: `dtoolcfg issues per-user dtool configuration files. It authenticates
users against an LDAP directory, gates credential generation behind
administrative confirmation, and manages S3 access keys on a NetApp
StorageGRID tenant together with dataset-lookup registry permissions.

Use "dtoolcfg [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dtoolcfg/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(mailCmd)
	rootCmd.AddCommand(authCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration and initializes the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore opens the user database.
func openStore(cfg *config.Config) (*store.GORMStore, error) {
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}
	return st, nil
}

// newGrid creates the object-storage identity client.
func newGrid(cfg *config.Config) *storagegrid.Client {
	return storagegrid.New(storagegrid.Config{
		Host:               cfg.StorageGrid.Host,
		AccountID:          cfg.StorageGrid.AccountID,
		Username:           cfg.StorageGrid.Username,
		Password:           cfg.StorageGrid.Password,
		InsecureSkipVerify: cfg.StorageGrid.InsecureSkipVerify,
	})
}

// newManager creates the credential lifecycle manager.
func newManager(cfg *config.Config) *credentials.Manager {
	return credentials.NewManager(newGrid(cfg), cfg.StorageGrid.DefaultGroupUUID, cfg.StorageGrid.KeyValidity)
}

// newRegistry creates the dataset-lookup registry client.
func newRegistry(cfg *config.Config) *registry.Client {
	return registry.New(registry.Config{
		URL:                cfg.Registry.URL,
		TokenURL:           cfg.Registry.TokenURL,
		Username:           cfg.Registry.Username,
		Password:           cfg.Registry.Password,
		InsecureSkipVerify: cfg.Registry.InsecureSkipVerify,
	})
}

// findUser loads a local user by username.
func findUser(ctx context.Context, st store.UserStore, username string) (*models.User, error) {
	user, err := st.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	return user, nil
}

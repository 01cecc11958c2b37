package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/internal/cli/prompt"
	"github.com/dtool-infra/dtool-config-generator/pkg/directory"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Directory authentication utilities",
}

var authTestCmd = &cobra.Command{
	Use:   "test [username]",
	Short: "Try authenticating a user against the directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var username string
		if len(args) > 0 {
			username = args[0]
		} else {
			username, err = prompt.Input("Username")
			if err != nil {
				return err
			}
		}

		password, err := prompt.Password("Password")
		if err != nil {
			return err
		}

		auth := directory.NewLDAPAuthenticator(directory.Config{
			Host:               cfg.Directory.Host,
			BaseDN:             cfg.Directory.BaseDN,
			UserDN:             cfg.Directory.UserDN,
			LoginAttr:          cfg.Directory.LoginAttr,
			BindDN:             cfg.Directory.BindDN,
			BindPassword:       cfg.Directory.BindPassword,
			ObjectFilter:       cfg.Directory.ObjectFilter,
			StartTLS:           cfg.Directory.StartTLS,
			InsecureSkipVerify: cfg.Directory.InsecureSkipVerify,
		})

		identity, err := auth.Authenticate(cmd.Context(), username, password)
		if err != nil {
			return err
		}

		fmt.Printf("authenticated %s\n", identity.Username)
		fmt.Printf("  id:    %d\n", identity.ID)
		fmt.Printf("  dn:    %s\n", identity.DN)
		fmt.Printf("  name:  %s\n", identity.Name)
		fmt.Printf("  email: %s\n", identity.Email)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authTestCmd)
}

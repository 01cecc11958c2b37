package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/internal/cli/output"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// requireConfirmed applies the same gate as the web surface: only
// confirmed, activated users get credentials issued.
func requireConfirmed(user *models.User) error {
	if user.CanGenerateCredentials() {
		return nil
	}
	if !user.Activated {
		return models.ErrUserDeactivated
	}
	return models.ErrUserUnconfirmed
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage remote identities and S3 access keys",
}

var storageSyncCmd = &cobra.Command{
	Use:   "sync <username>",
	Short: "Sync a local user to its remote identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		user, err := findUser(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		id, err := newManager(cfg).SyncUser(cmd.Context(), user)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", user.Username, id)
		return nil
	},
}

var storageListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's S3 access keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		user, err := findUser(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		keys, err := newManager(cfg).ListKeys(cmd.Context(), user)
		if err != nil {
			return err
		}

		table := output.NewTableData("ID", "DISPLAY NAME", "EXPIRES")
		for _, k := range keys {
			table.AddRow(k.ID, k.DisplayName, k.Expires)
		}
		table.Print(os.Stdout)
		return nil
	},
}

var storageRevokeCmd = &cobra.Command{
	Use:   "revoke <username>",
	Short: "Revoke all of a user's S3 access keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		user, err := findUser(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		if err := newManager(cfg).RevokeAll(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Printf("revoked all access keys of %s\n", user.Username)
		return nil
	},
}

var storageCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Issue a new S3 access key pair",
	RunE:  runStorageCreate,
	Args:  cobra.ExactArgs(1),
}

var storageRecreateCmd = &cobra.Command{
	Use:   "recreate <username>",
	Short: "Revoke all keys and issue a fresh pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		user, err := findUser(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		if err := requireConfirmed(user); err != nil {
			return err
		}

		keys, err := newManager(cfg).Recreate(cmd.Context(), user)
		if err != nil {
			return err
		}
		printKeyPair(keys.AccessKey, keys.SecretKey, keys.Expires)
		return nil
	},
}

func runStorageCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user, err := findUser(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}
	if err := requireConfirmed(user); err != nil {
		return err
	}

	keys, err := newManager(cfg).IssueKey(cmd.Context(), user)
	if err != nil {
		return err
	}
	printKeyPair(keys.AccessKey, keys.SecretKey, keys.Expires)
	return nil
}

// printKeyPair prints a freshly issued pair. The secret is shown only
// here and cannot be retrieved again.
func printKeyPair(accessKey, secretKey, expires string) {
	fmt.Printf("access key:        %s\n", accessKey)
	fmt.Printf("secret access key: %s\n", secretKey)
	fmt.Printf("expires:           %s\n", expires)
}

func init() {
	storageCmd.AddCommand(storageSyncCmd)
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageRevokeCmd)
	storageCmd.AddCommand(storageCreateCmd)
	storageCmd.AddCommand(storageRecreateCmd)
}

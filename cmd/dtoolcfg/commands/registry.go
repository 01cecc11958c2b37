package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/internal/cli/output"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Administer the dataset-lookup registry",
}

// base-uri subcommands

var registryBaseURICmd = &cobra.Command{
	Use:   "base-uri",
	Short: "Manage base URIs and their permission lists",
}

var registryBaseURIListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered base URIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		uris, err := newRegistry(cfg).ListBaseURIs(cmd.Context())
		if err != nil {
			return err
		}
		for _, uri := range uris {
			fmt.Println(uri)
		}
		return nil
	},
}

var registryBaseURIRegisterCmd = &cobra.Command{
	Use:   "register <base-uri>",
	Short: "Register a base URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newRegistry(cfg).RegisterBaseURI(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("registered %s\n", args[0])
		return nil
	},
}

var registryBaseURIInfoCmd = &cobra.Command{
	Use:   "info <base-uri>",
	Short: "Show the permission lists of a base URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		perms, err := newRegistry(cfg).GetPermissions(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("base URI: %s\n", perms.BaseURI)
		fmt.Println("search permissions:")
		for _, u := range perms.UsersWithSearchPermissions {
			fmt.Printf("  %s\n", u)
		}
		fmt.Println("register permissions:")
		for _, u := range perms.UsersWithRegisterPermissions {
			fmt.Printf("  %s\n", u)
		}
		return nil
	},
}

var allowWithRegister bool

var registryBaseURIAllowCmd = &cobra.Command{
	Use:   "allow <base-uri> <username>",
	Short: "Grant a user search permissions on a base URI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newRegistry(cfg).AllowUser(cmd.Context(), args[0], args[1], allowWithRegister); err != nil {
			return err
		}
		fmt.Printf("granted %s access to %s\n", args[1], args[0])
		return nil
	},
}

var registryBaseURIRevokeCmd = &cobra.Command{
	Use:   "revoke <base-uri> <username>",
	Short: "Remove a user from all permission lists of a base URI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newRegistry(cfg).RevokeUser(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("revoked %s access to %s\n", args[1], args[0])
		return nil
	},
}

// user subcommands

var registryUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the registry user roster",
}

var registryUserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry users",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		users, err := newRegistry(cfg).ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		table := output.NewTableData("USERNAME", "ADMIN")
		for _, u := range users {
			table.AddRow(u.Username, strconv.FormatBool(u.IsAdmin))
		}
		table.Print(os.Stdout)
		return nil
	},
}

var registryUserInfoCmd = &cobra.Command{
	Use:   "info <username>",
	Short: "Show a registry user's permissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		info, err := newRegistry(cfg).GetUserInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("username: %s\n", info.Username)
		fmt.Printf("admin:    %t\n", info.IsAdmin)
		fmt.Println("search permissions on:")
		for _, uri := range info.SearchPermissionsOnBases {
			fmt.Printf("  %s\n", uri)
		}
		fmt.Println("register permissions on:")
		for _, uri := range info.RegisterPermissionsOn {
			fmt.Printf("  %s\n", uri)
		}
		return nil
	},
}

var registerAsAdmin bool

var registryUserRegisterCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Register a user at the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newRegistry(cfg).RegisterUser(cmd.Context(), args[0], registerAsAdmin); err != nil {
			return err
		}
		fmt.Printf("registered %s\n", args[0])
		return nil
	},
}

var syncGrantSearch bool

var registryUserSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register every local user absent from the registry",
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

		users, err := st.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		usernames := make([]string, 0, len(users))
		for _, u := range users {
			usernames = append(usernames, u.Username)
		}

		grant := syncGrantSearch || cfg.Registry.GrantDefaultSearchPermissionsOnConfirmation
		if err := newRegistry(cfg).SyncAllUsers(cmd.Context(), usernames, grant, cfg.Registry.DefaultSearchPermissions); err != nil {
			return err
		}
		fmt.Printf("synced %d users\n", len(usernames))
		return nil
	},
}

func init() {
	registryBaseURIAllowCmd.Flags().BoolVar(&allowWithRegister, "register", false, "also grant register permissions")
	registryUserRegisterCmd.Flags().BoolVar(&registerAsAdmin, "admin", false, "register as registry admin")
	registryUserSyncCmd.Flags().BoolVar(&syncGrantSearch, "grant-default-search", false, "grant default search permissions to synced users")

	registryBaseURICmd.AddCommand(registryBaseURIListCmd)
	registryBaseURICmd.AddCommand(registryBaseURIRegisterCmd)
	registryBaseURICmd.AddCommand(registryBaseURIInfoCmd)
	registryBaseURICmd.AddCommand(registryBaseURIAllowCmd)
	registryBaseURICmd.AddCommand(registryBaseURIRevokeCmd)

	registryUserCmd.AddCommand(registryUserListCmd)
	registryUserCmd.AddCommand(registryUserInfoCmd)
	registryUserCmd.AddCommand(registryUserRegisterCmd)
	registryUserCmd.AddCommand(registryUserSyncCmd)

	registryCmd.AddCommand(registryBaseURICmd)
	registryCmd.AddCommand(registryUserCmd)
}

package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/internal/cli/output"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local user accounts",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local user accounts",
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

		table := output.NewTableData("ID", "USERNAME", "NAME", "EMAIL", "ACTIVATED", "CONFIRMED", "ADMIN")
		for _, u := range users {
			table.AddRow(
				strconv.Itoa(u.ID),
				u.Username,
				u.Name,
				u.Email,
				strconv.FormatBool(u.Activated),
				strconv.FormatBool(u.Confirmed),
				strconv.FormatBool(u.IsAdmin),
			)
		}
		table.Print(os.Stdout)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userListCmd)
}

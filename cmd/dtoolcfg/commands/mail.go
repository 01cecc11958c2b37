package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/pkg/mail"
)

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Mail delivery utilities",
}

var mailTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test mail to the confirmation mailbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sender := mail.NewSMTPSender(mail.Config{
			Host:         cfg.Mail.Host,
			Port:         cfg.Mail.Port,
			UseTLS:       cfg.Mail.UseTLS,
			UseSSL:       cfg.Mail.UseSSL,
			Username:     cfg.Mail.Username,
			Password:     cfg.Mail.Password,
			SuppressSend: cfg.Mail.SuppressSend,
		})

		msg := &mail.Message{
			From:    cfg.Confirmation.Sender,
			To:      cfg.Confirmation.Recipient,
			Subject: "Test mail",
			Body:    "Hello!\n",
		}
		if err := sender.Send(cmd.Context(), msg); err != nil {
			return err
		}
		fmt.Printf("test mail sent to %s\n", cfg.Confirmation.Recipient)
		return nil
	},
}

func init() {
	mailCmd.AddCommand(mailTestCmd)
}

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtool-infra/dtool-config-generator/pkg/api"
	"github.com/dtool-infra/dtool-config-generator/pkg/confirm"
	"github.com/dtool-infra/dtool-config-generator/pkg/credentials"
	"github.com/dtool-infra/dtool-config-generator/pkg/directory"
	"github.com/dtool-infra/dtool-config-generator/pkg/mail"
	"github.com/dtool-infra/dtool-config-generator/pkg/render"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web application",
	Long: `Start the HTTP server. On startup the database schema is migrated
and the configured bootstrap admin account is confirmed and flagged
admin, created first if missing.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.EnsureBootstrapAdmin(ctx, cfg.Admin.UserID, cfg.Admin.Username); err != nil {
		return fmt.Errorf("failed to set up bootstrap admin: %w", err)
	}

	sessions, err := api.NewSessionService(api.SessionConfig{
		Secret:   cfg.Server.SessionSecret,
		Duration: cfg.Server.SessionDuration,
		Secure:   strings.HasPrefix(cfg.Server.ExternalURL, "https://"),
	})
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}

	tokens, err := confirm.NewTokenService(confirm.TokenConfig{
		Secret:   cfg.Confirmation.Secret,
		Validity: cfg.Confirmation.Validity,
	})
	if err != nil {
		return fmt.Errorf("failed to create confirmation token service: %w", err)
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
	notifier := confirm.NewNotifier(confirm.NotifierConfig{
		ExternalURL: cfg.Server.ExternalURL,
		Sender:      cfg.Confirmation.Sender,
		Recipient:   cfg.Confirmation.Recipient,
	}, tokens, sender)

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

	grid := newGrid(cfg)
	creds := credentials.NewManager(grid, cfg.StorageGrid.DefaultGroupUUID, cfg.StorageGrid.KeyValidity)
	reg := newRegistry(cfg)

	renderer, err := render.New(render.Config{
		ConfigTemplate: cfg.Generate.ConfigTemplate,
		ReadmeTemplate: cfg.Generate.ReadmeTemplate,
	})
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer func() { _ = renderer.Close() }()

	ready := func(r *http.Request) error {
		if err := st.Ping(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		probeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := grid.CheckHealth(probeCtx); err != nil {
			return fmt.Errorf("storagegrid: %w", err)
		}
		return nil
	}

	handlers := api.NewHandlers(cfg, st, auth, sessions, tokens, notifier, creds, renderer, reg, ready, Version)
	server := api.NewServer(cfg.Server.ListenAddr, api.NewRouter(handlers), cfg.Server.ShutdownTimeout)

	return server.Start(ctx)
}

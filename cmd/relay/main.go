package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"enclave/internal/domain"
	"enclave/internal/relay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Untrusted relay for enclave clients",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	cfg := relay.DefaultConfig()
	var (
		defaultRoom string
		logLevel    string
		logJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			log.SetOutput(cmd.ErrOrStderr())
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			if logJSON {
				log.SetFormatter(&logrus.JSONFormatter{})
			}

			cfg.DefaultRoom = domain.RoomID(defaultRoom)
			cfg.Logger = log
			srv, err := relay.NewServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.StringVar(&defaultRoom, "default-room", string(cfg.DefaultRoom), "room for clients that name none")
	f.StringSliceVar(&cfg.AllowedOrigins, "allowed-origin", nil, "allowed websocket Origin (repeatable; default any)")
	f.DurationVar(&cfg.WriteTimeout, "write-timeout", 10*time.Second, "per-frame write deadline")
	f.Int64Var(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "largest frame accepted from a client")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.BoolVar(&logJSON, "log-json", false, "log as JSON")
	return cmd
}

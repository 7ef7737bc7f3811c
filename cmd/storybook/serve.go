package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/storybook/internal/server"
	"github.com/jonathan/storybook/internal/server/ratelimit"
	"github.com/jonathan/storybook/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start an HTTP server that streams storybook generation over SSE and accepts review decisions.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if servePort != 0 {
		a.cfg.Port = servePort
	}

	limits, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}

	srv := server.New(a.cfg, server.Deps{
		Runner:   a.pipeline,
		Sessions: session.NewRegistry(),
		Books:    a.books,
		Limiter:  ratelimit.NewLimiter(limits),
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

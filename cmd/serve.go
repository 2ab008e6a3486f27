package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tracker/internal/api"
	"github.com/joescharf/tracker/internal/daemon"
	"github.com/joescharf/tracker/internal/mcp"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
	webui "github.com/joescharf/tracker/internal/ui"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issue tracker API server",
	Long: `Start the HTTP API in the foreground. By default it listens on port 3000.

Issues are kept in memory only; stopping the server discards them.
Use 'tracker serve status' and 'tracker serve stop' from another shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "port to listen on")
	serveCmd.Flags().String("host", "", "interface to bind (default all)")
	serveCmd.Flags().String("store", "memory", "issue store backend: memory or sqlite")
	serveCmd.Flags().Bool("mcp", false, "mount the MCP transport at /mcp")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("store", serveCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("mcp.enabled", serveCmd.Flags().Lookup("mcp"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "tracker-serve.pid"))
}

// buildHandler opens the configured store and wires the API around it. The
// returned close func releases the store.
func buildHandler(ctx context.Context) (http.Handler, func() error, error) {
	driver := viper.GetString("store")
	s, err := store.Open(ctx, driver)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	svc := tracker.New(s)
	uiHandler, err := webui.Handler()
	if err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("load UI: %w", err)
	}
	opts := []api.Option{api.WithUIHandler(uiHandler)}
	if viper.GetBool("mcp.enabled") {
		opts = append(opts, api.WithMCPHandler(mcp.NewServer(svc, buildVersion).HTTPHandler()))
	}
	return api.NewServer(svc, opts...).Router(), s.Close, nil
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	handler, closeStore, err := buildHandler(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	addr := net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("tracker listening",
		"addr", addr,
		"env", viper.GetString("env"),
		"store", viper.GetString("store"),
		"mcp", viper.GetBool("mcp.enabled"),
	)
	ui.Success("Serving API at http://%s", displayAddr(addr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// displayAddr replaces an empty host with localhost for printing.
func displayAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host != "" {
		return addr
	}
	return net.JoinHostPort("localhost", port)
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server is running (PID %d)", pid)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return err
	}
	ui.Success("Sent stop signal to server (PID %d)", pid)
	return nil
}

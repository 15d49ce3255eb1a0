// Package main runs the Passknight vault server: an HTTPS API over a
// PostgreSQL or SQLite document store, authenticated with client
// certificates issued by the server's own CA.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/darusc/Passknight/internal/certgen"
	"github.com/darusc/Passknight/internal/config"
	"github.com/darusc/Passknight/internal/db"
	"github.com/darusc/Passknight/internal/logger"
	"github.com/darusc/Passknight/internal/repository"
	"github.com/darusc/Passknight/internal/server/handler/http"
	"github.com/darusc/Passknight/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "passknight-server",
		Short:        "Passknight vault server",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Build version: %s\n", cmp.Or(version, "N/A"))
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", cmp.Or(buildDate, "N/A"))
		},
	}
}

func newServeCmd() *cobra.Command {
	opts := config.DefaultServerOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTPS server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Load(cmd.Flags()); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, opts config.ServerOptions) error {
	log := logger.New()
	if err := log.Init(opts.LogLevel); err != nil {
		return err
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	server, closeDB, err := newServer(ctx, opts, zapLogger)
	if err != nil {
		return err
	}
	defer closeDB()

	errc := make(chan error, 1)
	go func() {
		zapLogger.Info("starting HTTPS server", zap.String("addr", opts.Address), zap.String("driver", opts.Driver))
		errc <- server.ListenAndServeTLS("", "")
	}()

	select {
	case err := <-errc:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start HTTPS server: %w", err)
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// newServer wires the store, services and handlers into an unstarted
// server. The cleaner runs until ctx is done.
func newServer(ctx context.Context, opts config.ServerOptions, zapLogger *zap.Logger) (*nethttp.Server, func(), error) {
	issuer, err := certgen.LoadIssuer(filepath.Join(opts.CertDir, "ca.crt"), filepath.Join(opts.CertDir, "ca.key"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load CA: %w", err)
	}
	tlsConfig, err := serverTLS(opts.CertDir)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, opts.Driver, opts.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot init database: %w", err)
	}

	cleaner := &db.Cleaner{
		DB:        database,
		Interval:  opts.CleanInterval.D(),
		Retention: opts.Retention.D(),
		Log:       zapLogger.Named("cleaner"),
	}
	cleaner.Start(ctx)

	authService := service.NewAuthService(repository.NewOwnerRepository(database))
	vaultService := service.NewVaultService(repository.NewVaultRepository(database), zapLogger.Named("vault"))

	authHandler := &http.AuthHandler{AuthService: authService, Issuer: issuer, Log: zapLogger.Named("auth")}
	vaultHandler := &http.VaultHandler{VaultService: vaultService, Log: zapLogger.Named("vault")}
	router := http.NewRouter(authHandler, vaultHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              opts.Address,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(zapLogger),
	}
	return server, func() { _ = database.Close() }, nil
}

// serverTLS verifies client certificates when they are given; CertAuth
// rejects requests without one outside registration.
func serverTLS(certDir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(certDir, "server.crt"), filepath.Join(certDir, "server.key"))
	if err != nil {
		return nil, fmt.Errorf("failed to load server TLS cert/key: %w", err)
	}

	caCert, err := os.ReadFile(filepath.Join(certDir, "ca.crt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert to pool")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

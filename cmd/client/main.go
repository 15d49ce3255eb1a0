// Package main is the Passknight command line client: it registers an owner
// with the server and runs the interactive vault shell.
package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/darusc/Passknight/internal/client/clipboard"
	"github.com/darusc/Passknight/internal/client/crypto"
	"github.com/darusc/Passknight/internal/client/generator"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/client/session"
	"github.com/darusc/Passknight/internal/client/shell"
	"github.com/darusc/Passknight/internal/config"
	"github.com/darusc/Passknight/internal/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := config.DefaultClientOptions()
	root := &cobra.Command{
		Use:          "passknight",
		Short:        "Passknight vault client",
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)
	opts.BindFlags(root.PersistentFlags())
	root.AddCommand(newRegisterCmd(&opts), newShellCmd(&opts), newVersionCmd())
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

func newRegisterCmd(opts *config.ClientOptions) *cobra.Command {
	var vaultName string
	cmd := &cobra.Command{
		Use:   "register <login>",
		Short: "Register a new owner and save the issued client certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Load(cmd.Flags()); err != nil {
				return err
			}
			err := remote.Register(cmd.Context(), remote.Enrollment{
				BaseURL:  opts.ServerURL,
				Login:    args[0],
				Vault:    vaultName,
				CAFile:   opts.CAFile,
				CertFile: opts.CertFile,
				KeyFile:  opts.KeyFile,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Registered %s. Certificate saved to %s, key to %s\n",
				args[0], opts.CertFile, opts.KeyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "name of the new vault")
	return cmd
}

func newShellCmd(opts *config.ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Unlock the vault and start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Load(cmd.Flags()); err != nil {
				return err
			}
			log := logger.New()
			if err := log.Init(opts.LogLevel); err != nil {
				return err
			}
			defer func() { _ = log.Log.Sync() }()
			return runShell(cmd.Context(), *opts, cmd.InOrStdin(), cmd.OutOrStdout(), log.Log)
		},
	}
}

func runShell(ctx context.Context, opts config.ClientOptions, in io.Reader, out io.Writer, log *zap.Logger) error {
	client, err := remote.LoadClientCertificate(opts.CertFile, opts.KeyFile, opts.CAFile, opts.RequestTimeout.D())
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	keyPEM, err := remote.ReadKeyPEM(opts.KeyFile)
	if err != nil {
		return err
	}
	cipher, err := crypto.NewFromKeyPEM(opts.Cipher, keyPEM)
	if err != nil {
		return err
	}

	genOpts := generator.DefaultOptions()
	genOpts.Length = opts.GeneratorLength
	sh := shell.New(in, out, shell.WithPrompt(opts.Prompt), shell.WithGeneratorOptions(genOpts))

	var clip clipboard.Clipboard
	if clipboard.Supported() {
		clip = clipboard.NewSystem(opts.ClipboardClear.D(), log.Named("clipboard"))
	} else {
		log.Warn("clipboard is not available")
	}

	sess, err := session.New(session.Config{
		Store:        remote.NewHTTPStore(client, opts.ServerURL, log.Named("remote")),
		Cipher:       cipher,
		Clipboard:    clip,
		Generator:    genOpts,
		HistoryDelay: opts.HistoryDelay.D(),
		Logger:       log,
		OnState:      sh.Observe,
		Notify:       sh.Notify,
	})
	if err != nil {
		return err
	}
	return sh.Run(ctx, sess)
}

// Package main generates a Certificate Authority (CA) and the server
// certificate of the vault server, and optionally a client certificate.
package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/darusc/Passknight/internal/certgen"
	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("certgen", pflag.ContinueOnError)
	fs.SetOutput(out)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.StringSlice("hosts", []string{"localhost", "127.0.0.1"}, "server host names and addresses")
	client := fs.String("client", "", "also issue a client certificate for this login")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ca, err := certgen.NewCA("Passknight CA", certgen.CAValidity)
	if err != nil {
		return err
	}
	caKey, err := ca.KeyPEM()
	if err != nil {
		return err
	}
	if err := certgen.WritePair(filepath.Join(*dir, "ca.crt"), filepath.Join(*dir, "ca.key"), ca.CertPEM(), caKey); err != nil {
		return err
	}

	certPEM, keyPEM, err := ca.IssueServer(*hosts)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(filepath.Join(*dir, "server.crt"), filepath.Join(*dir, "server.key"), certPEM, keyPEM); err != nil {
		return err
	}

	if *client != "" {
		certPEM, keyPEM, err := ca.Issue(*client)
		if err != nil {
			return err
		}
		if err := certgen.WritePair(filepath.Join(*dir, "client.crt"), filepath.Join(*dir, "client.key"), certPEM, keyPEM); err != nil {
			return err
		}
	}

	color.New(color.FgGreen).Fprintf(out, "Certificates generated into %s\n", *dir)
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

// ClientOptions holds the configuration values of the client.
type ClientOptions struct {
	// ServerURL is the base URL of the Passknight server.
	ServerURL string `json:"server_url" yaml:"server_url"`

	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`

	// Cipher selects the item cipher: "aes-gcm" or "xchacha20poly1305".
	Cipher string `json:"cipher" yaml:"cipher"`

	// HistoryDelay is the quiet period before the generator history is saved.
	HistoryDelay Duration `json:"history_delay" yaml:"history_delay"`

	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	// ClipboardClear is how long a copied password stays on the clipboard.
	// Zero keeps it.
	ClipboardClear Duration `json:"clipboard_clear" yaml:"clipboard_clear"`

	// GeneratorLength is the default length of generated passwords.
	GeneratorLength int `json:"generator_length" yaml:"generator_length"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// Prompt is printed before every shell command.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Config is the path to the config file.
	Config string `json:"-" yaml:"-"`
}

// DefaultClientOptions returns the built-in client defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ServerURL:       "https://localhost:8080",
		CertFile:        "client.crt",
		KeyFile:         "client.key",
		CAFile:          "certs/ca.crt",
		Cipher:          "aes-gcm",
		HistoryDelay:    Duration(1500 * time.Millisecond),
		RequestTimeout:  Duration(10 * time.Second),
		ClipboardClear:  Duration(30 * time.Second),
		GeneratorLength: 16,
		LogLevel:        "warn",
		Prompt:          "passknight> ",
		Config:          "passknight.yaml",
	}
}

// BindFlags registers the client flags on fs, bound to o.
func (o *ClientOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ServerURL, "url", o.ServerURL, "server base URL")
	fs.StringVar(&o.CertFile, "cert", o.CertFile, "path to client cert")
	fs.StringVar(&o.KeyFile, "key", o.KeyFile, "path to client key")
	fs.StringVar(&o.CAFile, "ca", o.CAFile, "path to CA cert")
	fs.StringVar(&o.Cipher, "cipher", o.Cipher, "item cipher (aes-gcm|xchacha20poly1305)")
	durationVar(fs, &o.HistoryDelay, "history-delay", "quiet period before saving the generator history")
	durationVar(fs, &o.RequestTimeout, "timeout", "server request timeout")
	durationVar(fs, &o.ClipboardClear, "clipboard-clear", "clear copied passwords after this long (0 keeps them)")
	fs.IntVar(&o.GeneratorLength, "length", o.GeneratorLength, "length of generated passwords")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.StringVar(&o.Prompt, "prompt", o.Prompt, "shell prompt")
	fs.StringVarP(&o.Config, "config", "c", o.Config, "path to config file")
}

// Load completes o from the config file, the flags set on fs and the
// environment.
func (o *ClientOptions) Load(fs *pflag.FlagSet) error {
	setFromEnv(&o.Config, "CONFIG")
	path := o.Config
	if err := load(fs, path, o); err != nil {
		return err
	}
	o.Config = path

	setFromEnv(&o.ServerURL, "PASSKNIGHT_SERVER_URL")
	setFromEnv(&o.LogLevel, "PASSKNIGHT_LOG_LEVEL")

	return o.Validate()
}

// Validate checks the option values.
func (o *ClientOptions) Validate() error {
	u, err := url.Parse(o.ServerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", o.ServerURL)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("server URL must use https, got %q", o.ServerURL)
	}
	if o.HistoryDelay < 0 || o.RequestTimeout < 0 || o.ClipboardClear < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

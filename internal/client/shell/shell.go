// Package shell is the interactive command loop of the client.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/darusc/Passknight/internal/client/generator"
	"github.com/darusc/Passknight/internal/client/mediator"
	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/client/session"
	"github.com/darusc/Passknight/internal/models"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const helpText = `Available commands:
  list [password|note]          list item names
  show <password|note> <name>   print an item
  add-password                  create a password item
  add-note                      create a note
  edit <password|note> <name>   edit an item
  delete <password|note> <name> delete an item
  generate [length]             generate a password
  history                       print generated passwords
  copy-user <name>              copy a username
  copy-pass <name>              copy a password
  lock, exit                    lock the vault and quit`

// Vault is what the shell needs from an unlocked vault session.
type Vault interface {
	Load(ctx context.Context) error
	Vault() *models.Vault
	OpenNew(kind models.Kind) (*mediator.Draft, error)
	OpenEdit(kind models.Kind, name string) (*mediator.Draft, error)
	Cancel(d *mediator.Draft)
	Save(ctx context.Context, d *mediator.Draft) (mediator.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, name string) (mediator.Outcome, error)
	Show(kind models.Kind, name string) (models.Item, error)
	Generate() (string, error)
	SetGeneratorOptions(opts generator.Options) error
	History() []string
	CopyUsername(name string) error
	CopyPassword(name string) error
	Lock()
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	headColor = color.New(color.Bold)
)

// Shell reads commands from in and writes to out.
type Shell struct {
	scanner *bufio.Scanner
	inFile  *os.File
	out     io.Writer
	prompt  string
	spin    *spinner.Spinner
	genOpts generator.Options
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompt sets the prompt.
func WithPrompt(p string) Option {
	return func(s *Shell) { s.prompt = p }
}

// WithGeneratorOptions sets the base options of the generate command.
func WithGeneratorOptions(o generator.Options) Option {
	return func(s *Shell) { s.genOpts = o }
}

// New returns a Shell. Secrets are read without echo when in is a terminal,
// and a spinner is shown during remote calls when out is one.
func New(in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		scanner: bufio.NewScanner(in),
		out:     out,
		prompt:  "passknight> ",
		genOpts: generator.DefaultOptions(),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.inFile = f
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		s.spin.Suffix = " waiting for the vault server"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe renders mediator state transitions.
func (s *Shell) Observe(_ mediator.Op, st mediator.State) {
	if s.spin == nil {
		return
	}
	if st == mediator.RemotePending {
		s.spin.Start()
		return
	}
	s.spin.Stop()
}

// Notify prints a message from background work.
func (s *Shell) Notify(msg string) {
	warnColor.Fprintln(s.out, msg)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) fail(err error) {
	errColor.Fprintln(s.out, describe(err))
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrItemNotFound):
		return "Item not found"
	case errors.Is(err, session.ErrLocked):
		return "The vault is locked"
	case errors.Is(err, session.ErrNotPassword), errors.Is(err, generator.ErrNoClasses), errors.Is(err, models.ErrUnknownKind):
		return err.Error()
	}
	msg := mediator.Message(err)
	if remote.KindOf(err) == remote.Unreachable {
		msg += " (the server could not be reached)"
	}
	return msg
}

// ask prints prompt and returns the next input line.
func (s *Shell) ask(prompt string) (string, error) {
	s.printf("%s", prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(s.scanner.Text(), "\r"), nil
}

// askSecret reads a line without echo when possible.
func (s *Shell) askSecret(prompt string) (string, error) {
	if s.inFile == nil {
		return s.ask(prompt)
	}
	s.printf("%s", prompt)
	b, err := term.ReadPassword(int(s.inFile.Fd()))
	s.printf("\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Shell) confirm(prompt string) bool {
	ans, err := s.ask(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	ans = strings.ToLower(strings.TrimSpace(ans))
	return ans == "y" || ans == "yes"
}

// Run loads the vault and serves commands until exit, lock or end of input.
// The vault is locked on return.
func (s *Shell) Run(ctx context.Context, v Vault) error {
	defer v.Lock()

	if err := v.Load(ctx); err != nil {
		return err
	}
	okColor.Fprintf(s.out, "Vault %q unlocked. Type 'help' for a list of commands.\n", v.Vault().Name())

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := s.ask(s.prompt)
		if errors.Is(err, io.EOF) {
			s.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "lock" {
			s.printf("Bye\n")
			return nil
		}
		if err := s.dispatch(ctx, v, args); err != nil {
			if errors.Is(err, io.EOF) {
				s.printf("\n")
				return nil
			}
			s.fail(err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, v Vault, args []string) error {
	switch args[0] {
	case "help":
		s.printf("%s\n", helpText)
	case "list":
		return s.list(v, args[1:])
	case "show":
		kind, name, err := kindAndName(args)
		if err != nil {
			return err
		}
		item, err := v.Show(kind, name)
		if err != nil {
			return err
		}
		s.printItem(item)
	case "add-password":
		return s.add(ctx, v, models.KindPassword)
	case "add-note":
		return s.add(ctx, v, models.KindNote)
	case "edit":
		kind, name, err := kindAndName(args)
		if err != nil {
			return err
		}
		return s.edit(ctx, v, kind, name)
	case "delete":
		kind, name, err := kindAndName(args)
		if err != nil {
			return err
		}
		if !s.confirm(fmt.Sprintf("Delete %s %s?", kind, name)) {
			return nil
		}
		if _, err := v.Delete(ctx, kind, name); err != nil {
			return err
		}
		okColor.Fprintln(s.out, "Item deleted!")
	case "generate":
		return s.generate(v, args[1:])
	case "history":
		for i, h := range v.History() {
			s.printf("%3d  %s\n", i+1, h)
		}
	case "copy-user", "copy-pass":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <name>", args[0])
		}
		if args[0] == "copy-user" {
			return v.CopyUsername(args[1])
		}
		return v.CopyPassword(args[1])
	default:
		s.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return nil
}

func parseKind(s string) (models.Kind, error) {
	switch strings.ToLower(s) {
	case "password", "passwords", "p":
		return models.KindPassword, nil
	case "note", "notes", "n":
		return models.KindNote, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrUnknownKind, s)
}

func kindAndName(args []string) (models.Kind, string, error) {
	if len(args) < 3 {
		return "", "", fmt.Errorf("usage: %s <password|note> <name>", args[0])
	}
	kind, err := parseKind(args[1])
	if err != nil {
		return "", "", err
	}
	return kind, args[2], nil
}

func (s *Shell) list(v Vault, args []string) error {
	kinds := models.Kinds
	if len(args) > 0 {
		k, err := parseKind(args[0])
		if err != nil {
			return err
		}
		kinds = []models.Kind{k}
	}
	for _, k := range kinds {
		items := v.Vault().Items(k)
		headColor.Fprintf(s.out, "%ss (%d)\n", k, len(items))
		for _, it := range items {
			s.printf("  %s\n", it.Header().Name)
		}
	}
	return nil
}

func (s *Shell) printItem(item models.Item) {
	switch it := item.(type) {
	case *models.PasswordItem:
		s.printf("Name:     %s\nUsername: %s\nPassword: %s\n", it.Name, it.Username, it.Password)
		if it.URL != "" {
			s.printf("URL:      %s\n", it.URL)
		}
	case *models.NoteItem:
		s.printf("Name: %s\n%s\n", it.Name, it.Content)
	}
}

func (s *Shell) generate(v Vault, args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid length %q", args[0])
		}
		opts := s.genOpts
		opts.Length = n
		if err := v.SetGeneratorOptions(opts); err != nil {
			return err
		}
	}
	pw, err := v.Generate()
	if err != nil {
		return err
	}
	s.printf("%s\n", pw)
	return nil
}

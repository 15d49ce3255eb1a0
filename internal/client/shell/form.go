package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/darusc/Passknight/internal/client/mediator"
	"github.com/darusc/Passknight/internal/models"
)

func (s *Shell) add(ctx context.Context, v Vault, kind models.Kind) error {
	d, err := v.OpenNew(kind)
	if err != nil {
		return err
	}
	if err := s.fill(v, d); err != nil {
		v.Cancel(d)
		return err
	}
	return s.save(ctx, v, d)
}

func (s *Shell) edit(ctx context.Context, v Vault, kind models.Kind, name string) error {
	d, err := v.OpenEdit(kind, name)
	if err != nil {
		return err
	}
	if err := s.fill(v, d); err != nil {
		v.Cancel(d)
		return err
	}
	return s.save(ctx, v, d)
}

// field asks for a value, keeping cur when the answer is empty.
func (s *Shell) field(label, cur string) (string, error) {
	prompt := label + ": "
	if cur != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, cur)
	}
	val, err := s.ask(prompt)
	if err != nil {
		return "", err
	}
	if val == "" {
		return cur, nil
	}
	return val, nil
}

func (s *Shell) fill(v Vault, d *mediator.Draft) error {
	var err error
	h := d.Working.Header()
	if h.Name, err = s.field("Name", h.Name); err != nil {
		return err
	}

	switch it := d.Working.(type) {
	case *models.PasswordItem:
		if it.Username, err = s.field("Username", it.Username); err != nil {
			return err
		}
		prompt := "Password (empty to generate): "
		if d.IsEdit() {
			prompt = "Password (empty to keep): "
		}
		pw, err := s.askSecret(prompt)
		if err != nil {
			return err
		}
		switch {
		case pw != "":
			it.Password = pw
		case !d.IsEdit():
			if it.Password, err = v.Generate(); err != nil {
				return err
			}
			s.printf("Generated password: %s\n", it.Password)
		}
		if it.URL, err = s.field("URL", it.URL); err != nil {
			return err
		}
	case *models.NoteItem:
		content, err := s.lines("Content (end with a line holding a single '.'):")
		if err != nil {
			return err
		}
		if content != "" || !d.IsEdit() {
			it.Content = content
		}
	}
	return nil
}

// lines reads lines until a single "." or the end of input.
func (s *Shell) lines(prompt string) (string, error) {
	s.printf("%s\n", prompt)
	var b strings.Builder
	for {
		line, err := s.ask("")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if line == "." {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

// save submits the form until it is committed or the user gives up. A bad
// name can be corrected and a failed edit retried with the same values.
func (s *Shell) save(ctx context.Context, v Vault, d *mediator.Draft) error {
	for {
		out, err := v.Save(ctx, d)
		if err == nil {
			okColor.Fprintf(s.out, "Saved %s %s\n", d.Kind, out.Item.Header().Name)
			return nil
		}
		s.fail(err)

		var nerr *models.NameError
		switch {
		case errors.As(err, &nerr):
			name, aerr := s.ask("Name: ")
			if aerr != nil {
				v.Cancel(d)
				return aerr
			}
			d.Working.Header().Name = name
			continue
		case out.State == mediator.RolledBack && d.IsEdit():
			if s.confirm("Retry?") {
				continue
			}
		}
		v.Cancel(d)
		return nil
	}
}

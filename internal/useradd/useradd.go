// Package useradd creates supervisor accounts from a terminal, for operators
// bootstrapping a credential store without going through the HTTP API.
package useradd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/flagx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

type Registrar interface {
	Register(ctx context.Context, username, password string, profile map[string]any) (*models.User, error)
}

// UsernameFlag returns the value of -u, or "" when it is absent.
func UsernameFlag(args []string) string {
	var username string

	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&username, "u", "", "username to create")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-u"}))

	return username
}

// GetSimpleText prints a prompt and reads one trimmed line. A partial line
// before EOF is returned as is.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password from the terminal without echo.
// The caller should wipe the returned slice.
func GetPassword(prompt string, w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// Run asks for the username (unless given) and the password twice, then
// registers the account through r.
func Run(ctx context.Context, r Registrar, reader *bufio.Reader, w io.Writer, username string) (*models.User, error) {
	if username == "" {
		var err error
		if username, err = GetSimpleText(reader, "Username", w); err != nil {
			return nil, fmt.Errorf("read username: %w", err)
		}
	}

	pw, err := GetPassword("Password: ", w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword("Repeat password: ", w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		return nil, ErrPasswordMismatch
	}

	return r.Register(ctx, username, string(pw), nil)
}

// Package prompt asks the user for GitHub credentials on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/florianilch/pipeline-auth/internal/githubauth"
)

// Terminal reads a username (echoed) and a password (not echoed when the
// input is a terminal).
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	hasTTY bool
}

// New creates a Terminal prompt reading from in and writing prompts to out.
// Password echo is suppressed only when in is a terminal; otherwise the
// password is read as a plain line.
func New(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.hasTTY = true
	}
	return t
}

// Credentials prompts for the GitHub username and password.
func (t *Terminal) Credentials(ctx context.Context) (githubauth.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return githubauth.Credentials{}, err
	}

	_, _ = fmt.Fprint(t.out, "Github username: ")
	username, err := t.readLine()
	if err != nil {
		return githubauth.Credentials{}, fmt.Errorf("reading username: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return githubauth.Credentials{}, err
	}

	_, _ = fmt.Fprint(t.out, "Password: ")
	password, err := t.readPassword()
	if err != nil {
		return githubauth.Credentials{}, fmt.Errorf("reading password: %w", err)
	}

	return githubauth.Credentials{Username: username, Password: password}, nil
}

func (t *Terminal) readPassword() (string, error) {
	if !t.hasTTY {
		return t.readLine()
	}
	b, err := term.ReadPassword(t.fd)
	// ReadPassword swallows the newline typed by the user
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

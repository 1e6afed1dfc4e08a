// Package console prints colored status messages for interactive use.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console writes success, warning and failure messages to a writer.
type Console struct {
	out     io.Writer
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

// Option configures a Console.
type Option func(*Console)

// WithoutColor disables ANSI colors regardless of the terminal.
func WithoutColor() Option {
	return func(c *Console) {
		c.success.DisableColor()
		c.warn.DisableColor()
		c.fail.DisableColor()
	}
}

// New creates a Console writing to out. Defaults to stderr so that tokens
// printed on stdout stay machine-readable.
func New(out io.Writer, opts ...Option) *Console {
	if out == nil {
		out = os.Stderr
	}
	c := &Console{
		out:     out,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Success prints a message in green.
func (c *Console) Success(format string, args ...any) {
	c.print(c.success, format, args...)
}

// Warn prints a message in yellow.
func (c *Console) Warn(format string, args ...any) {
	c.print(c.warn, format, args...)
}

// Fail prints a message in red.
func (c *Console) Fail(format string, args ...any) {
	c.print(c.fail, format, args...)
}

func (c *Console) print(col *color.Color, format string, args ...any) {
	_, _ = col.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Package ui prints the one-line status messages users see on stderr.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Printer writes status messages. Out receives machine-readable results,
// Err everything meant for a human.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Quiet bool
	color bool
	tty   bool
}

// New returns a Printer. Colors and the spinner are enabled only when errw
// is a terminal.
func New(out, errw io.Writer, quiet bool) *Printer {
	tty := isTerminal(errw)
	return &Printer{Out: out, Err: errw, Quiet: quiet, color: tty, tty: tty}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

// Bold wraps s in bold when colors are enabled.
func (p *Printer) Bold(s string) string {
	return p.paint(colorBold, s)
}

func (p *Printer) Success(format string, args ...any) {
	if !p.Quiet {
		fmt.Fprintf(p.Err, p.paint(colorGreen, "✓ ")+format+"\n", args...)
	}
}

func (p *Printer) Info(format string, args ...any) {
	if !p.Quiet {
		fmt.Fprintf(p.Err, p.paint(colorBlue, "→ ")+format+"\n", args...)
	}
}

func (p *Printer) Warn(format string, args ...any) {
	if !p.Quiet {
		fmt.Fprintf(p.Err, p.paint(colorYellow, "⚠ ")+format+"\n", args...)
	}
}

// Error is never silenced by Quiet.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.Err, p.paint(colorRed, "✗ ")+format+"\n", args...)
}

// Println writes a plain line to Out.
func (p *Printer) Println(format string, args ...any) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// StartSpinner animates msg on a terminal until the returned func is called.
// Off a terminal it prints msg once.
func (p *Printer) StartSpinner(msg string) func() {
	if p.Quiet || !p.tty {
		if !p.Quiet {
			fmt.Fprintf(p.Err, "%s...\n", msg)
		}
		return func() {}
	}

	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(p.Err, "\r%s %s", p.paint(colorCyan, frames[i%len(frames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			fmt.Fprint(p.Err, "\r\033[K") // Clear line
		})
	}
}

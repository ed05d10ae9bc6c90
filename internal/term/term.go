// Package term renders progress output and interactive confirmations
// on the terminal.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"shipdeck/internal/api"
)

var (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func init() {
	// Check if output is a terminal
	if stat, err := os.Stdout.Stat(); err == nil {
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			// Not a terminal, disable colors
			colorGreen = ""
			colorRed = ""
			colorYellow = ""
			colorReset = ""
		}
	}
}

// Renderer writes progress lines for a running deploy or rollback.
type Renderer struct {
	Out io.Writer
}

// NewRenderer renders to stdout.
func NewRenderer() *Renderer {
	return &Renderer{Out: os.Stdout}
}

// Progress prints a progress line. Percent below zero means the line
// carries no progress change (a log line from the server).
func (r *Renderer) Progress(percent int, message string) {
	if percent < 0 {
		fmt.Fprintf(r.Out, "       %s\n", message)
		return
	}
	fmt.Fprintf(r.Out, "[%3d%%] %s\n", percent, message)
}

// Success prints a success marker
func (r *Renderer) Success(msg string) {
	fmt.Fprintf(r.Out, "%-70s%s[OK]%s\n", msg, colorGreen, colorReset)
}

// Fail prints a failure marker
func (r *Renderer) Fail(msg string) {
	fmt.Fprintf(r.Out, "%-70s%s[FAIL]%s\n", msg, colorRed, colorReset)
}

// Warn prints a warning marker
func (r *Renderer) Warn(msg string) {
	fmt.Fprintf(r.Out, "%-70s%s[WARN]%s\n", msg, colorYellow, colorReset)
}

// Prompter answers the orchestrators' confirmation points from the
// terminal. With AssumeYes set every confirmation proceeds without
// prompting. When stdin is not a terminal and AssumeYes is unset,
// confirmations are declined so unattended runs never hang.
type Prompter struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool

	// interactive overrides terminal detection in tests.
	interactive *bool
}

// NewPrompter reads from stdin and writes to stdout.
func NewPrompter(assumeYes bool) *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stdout, AssumeYes: assumeYes}
}

// ConfirmOrphanCleanup asks whether stale servers from the previous
// deployment should be cleaned up.
func (p *Prompter) ConfirmOrphanCleanup(ctx context.Context, orphans []api.ServerRef) (bool, error) {
	fmt.Fprintln(p.Out)
	fmt.Fprintf(p.Out, "%d server(s) are running the old version and are not part of this deployment:\n", len(orphans))
	for _, ref := range orphans {
		fmt.Fprintf(p.Out, "  - %s\n", describeServer(ref))
	}
	fmt.Fprintln(p.Out, "They will be stopped and cleaned up before continuing.")
	return p.confirm(ctx, "Proceed with cleanup?")
}

// ConfirmPartialRollback asks whether to roll back only the reachable
// subset of the original target servers.
func (p *Prompter) ConfirmPartialRollback(ctx context.Context, unavailable, available []api.ServerRef) (bool, error) {
	fmt.Fprintln(p.Out)
	fmt.Fprintf(p.Out, "%d of %d original target server(s) are unreachable:\n",
		len(unavailable), len(unavailable)+len(available))
	for _, ref := range unavailable {
		fmt.Fprintf(p.Out, "  - %s\n", describeServer(ref))
	}
	fmt.Fprintf(p.Out, "The rollback can continue on the %d reachable server(s) only.\n", len(available))
	return p.confirm(ctx, "Continue with a partial rollback?")
}

// confirm asks a yes/no question. Default is no.
func (p *Prompter) confirm(ctx context.Context, question string) (bool, error) {
	if p.AssumeYes {
		fmt.Fprintf(p.Out, "%s [y/N]: y (assumed)\n", question)
		return true, nil
	}
	if !p.isInteractive() {
		fmt.Fprintf(p.Out, "%s [y/N]: n (non-interactive)\n", question)
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.Out, "%s [y/N]: ", question)
	reader := bufio.NewReader(p.In)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false, nil
	}

	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes", nil
}

// isInteractive checks if stdin is a terminal
func (p *Prompter) isInteractive() bool {
	if p.interactive != nil {
		return *p.interactive
	}
	file, ok := p.In.(*os.File)
	if !ok {
		return true
	}
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func describeServer(ref api.ServerRef) string {
	parts := []string{ref.IP}
	if ref.Name != "" {
		parts = append(parts, ref.Name)
	}
	if ref.Region != "" {
		parts = append(parts, ref.Region)
	}
	return strings.Join(parts, " ")
}

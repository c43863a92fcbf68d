package planner

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/ngoclaw/deskflow/internal/interfaces/cli"
)

// StdinConfirmer implements visionnav.Confirmer by blocking on a terminal
// prompt (spec §4.6.3: "present the keywords to the user and require
// explicit confirmation").
type StdinConfirmer struct {
	in       *bufio.Reader
	out      *cli.Renderer
	disabled bool
}

// NewStdinConfirmer creates a confirmer. disabled bypasses the prompt and
// always denies, matching spec §4.6.3's "optionally disabled ... in
// automated/unattended modes" — denial, not blanket approval, is the safe
// default for an unattended run.
func NewStdinConfirmer(in *bufio.Reader, out *cli.Renderer, disabled bool) *StdinConfirmer {
	return &StdinConfirmer{in: in, out: out, disabled: disabled}
}

// ConfirmCritical blocks for an explicit y/n answer.
func (c *StdinConfirmer) ConfirmCritical(ctx context.Context, keywords []string, reasoning string) bool {
	if c.disabled {
		return false
	}
	fmt.Println(c.out.RenderApproval(keywords, reasoning))
	line, err := c.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

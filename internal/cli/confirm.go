package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/valter-silva-au/kanban-sync/internal/core"
)

// promptConfirmer asks for y/N on a terminal. It approves without asking
// while AssumeYes is set.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConfirmer creates a core.Confirmer that prompts on out and reads the
// answer from in.
func NewConfirmer(in io.Reader, out io.Writer) core.Confirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *promptConfirmer) Confirm(prompt string) bool {
	if AssumeYes {
		return true
	}
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	answer, err := c.in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(c.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

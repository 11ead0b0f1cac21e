// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/setpkg/setpkg/internal/resolver"

	"github.com/charmbracelet/lipgloss"
)

// statusPrinter writes one line per resolver event. Lines go to stderr so
// that stdout stays evaluable by the calling shell.
type statusPrinter struct {
	w     io.Writer
	quiet bool
}

func (p *statusPrinter) event(ev resolver.Event) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.w, statusLine(ev))
}

func (p *statusPrinter) warnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(p.w, WarningStyle.Render("warning: ")+w)
	}
}

// statusLine formats ev as "action:     [s]  <indent>name-version".
func statusLine(ev resolver.Event) string {
	action := fmt.Sprintf("%-12s", string(ev.Action)+":")
	marker := "[" + ev.Symbol() + "]"
	return actionStyle(ev.Action).Render(action) + marker + "  " +
		strings.Repeat("  ", ev.Depth) + CmdStyle.Render(ev.String())
}

func actionStyle(a resolver.Action) lipgloss.Style {
	switch a {
	case resolver.ActionRemove:
		return ErrorStyle
	case resolver.ActionKeep:
		return SubtitleStyle
	default:
		return SuccessStyle
	}
}

// SPDX-License-Identifier: MPL-2.0

package resolver

import "fmt"

// Action is the kind of a status event.
type Action string

const (
	ActionAdd     Action = "adding"
	ActionRemove  Action = "removing"
	ActionSwitch  Action = "switching"
	ActionRefresh Action = "refreshing"
	ActionReload  Action = "reloading"
	ActionKeep    Action = "keeping"
)

// Event reports one step of a command as it happens.
type Event struct {
	Action  Action
	Package string
	Version string
	// From is the previously active version for switches.
	From string
	// Depth is the nesting level of the step in the dependency walk.
	Depth int
}

// Symbol is the one-character marker shown next to the action.
func (e Event) Symbol() string {
	switch e.Action {
	case ActionRemove:
		return "-"
	case ActionKeep:
		return " "
	default:
		return "+"
	}
}

func (e Event) String() string {
	if e.Action == ActionSwitch {
		return fmt.Sprintf("%s-%s --> %s", e.Package, e.From, e.Version)
	}
	return e.Package + "-" + e.Version
}

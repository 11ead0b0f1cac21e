// SPDX-License-Identifier: MPL-2.0

package envdiff

// OpKind is the kind of a recorded environment mutation.
type OpKind string

// End names the end of a list a value was inserted at.
type End string

const (
	OpSet     OpKind = "set"
	OpUnset   OpKind = "unset"
	OpPrepend OpKind = "prepend"
	OpAppend  OpKind = "append"
	OpPop     OpKind = "pop"

	EndFront End = "front"
	EndBack  End = "back"
)

type (
	// EnvOp is one recorded mutation. It is never modified after recording.
	EnvOp struct {
		Kind     OpKind `json:"kind"`
		Variable string `json:"var"`
		Value    string `json:"value,omitempty"`
		// Prior is the variable's value before the op; nil means unset.
		Prior *string `json:"prior,omitempty"`

		// Shared marks a prepend/append that only took another reference on
		// an entry some other op had already inserted.
		Shared bool `json:"shared,omitempty"`
		// End and KeepEmpty describe the reference the op held or consumed.
		End       End  `json:"end,omitempty"`
		KeepEmpty bool `json:"keep_empty,omitempty"`

		// Counted marks a pop that consumed a tracked reference.
		Counted bool `json:"counted,omitempty"`
		// Removed marks a pop that physically removed an entry at Index.
		Removed bool `json:"removed,omitempty"`
		Index   int  `json:"index,omitempty"`
	}

	// ListRef counts the active references to one physical list entry.
	ListRef struct {
		Count int
		End   End
		// KeepEmpty is set when the variable existed but was empty before the
		// entry was inserted, so removing the entry must not unset it.
		KeepEmpty bool
	}

	refKey struct {
		variable string
		value    string
	}
)

func strPtr(s string) *string { return &s }

func endFor(kind OpKind) End {
	if kind == OpAppend {
		return EndBack
	}
	return EndFront
}

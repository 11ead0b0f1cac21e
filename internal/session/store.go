// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// recordFormat is bumped whenever the persisted layout changes incompatibly.
const recordFormat = 1

type (
	// Store persists session records.
	Store interface {
		// Load returns the record for id, or an error wrapping ErrNoRecord.
		Load(ctx context.Context, id string) (*State, error)
		// Save replaces the record for st.ID atomically.
		Save(ctx context.Context, st *State) error
		// Delete removes the record for id. A missing record is not an error.
		Delete(ctx context.Context, id string) error
		// Location describes where records are kept, for diagnostics.
		Location() string
	}

	record struct {
		Format int `json:"format"`
		*State
	}
)

func encode(st *State) ([]byte, error) {
	if st.Packages == nil {
		st = st.Clone()
		st.Packages = []*Package{}
	}
	return json.MarshalIndent(record{Format: recordFormat, State: st}, "", "  ")
}

func decode(data []byte) (*State, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Format > recordFormat {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, rec.Format)
	}
	if rec.State == nil {
		return nil, fmt.Errorf("empty record")
	}
	for i, p := range rec.Packages {
		if p == nil || p.Name == "" || p.Version == "" {
			return nil, fmt.Errorf("package %d has no name or version", i)
		}
	}
	return rec.State, nil
}

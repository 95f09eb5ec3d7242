// Package diff computes field-level changes between two entity snapshots.
//
// Callers describe their comparable fields explicitly as an ordered Snapshot,
// so the engine never introspects caller types at runtime. Values compare by
// JSON-normalized deep equality: re-serializing an unchanged nested structure
// does not produce spurious diffs.
package diff

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTypeMismatch marks fields whose old and new values have different JSON
// shapes (e.g. string vs number). Advisory: the returned changes still carry
// a whole-field replacement for each mismatched field, so callers record the
// replacement and move on rather than aborting.
var ErrTypeMismatch = errors.New("field type mismatch")

// Field is one named comparable value in a snapshot.
type Field struct {
	Name  string
	Value any
}

// Snapshot is an ordered mapping of field name to scalar-or-serializable
// value. Order determines the order of emitted changes.
type Snapshot []Field

// Get returns the value for a field name and whether it is present.
func (s Snapshot) Get(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FieldChange is one changed field with its before and after values.
type FieldChange struct {
	FieldName string
	OldValue  any
	NewValue  any
}

// Option configures a diff.
type Option func(*config)

type config struct {
	ignored map[string]bool
}

// WithIgnoredFields excludes volatile bookkeeping fields (updatedAt and the
// like) from comparison so housekeeping columns do not turn every update into
// a no-op-looking diff entry.
func WithIgnoredFields(names ...string) Option {
	return func(c *config) {
		for _, n := range names {
			c.ignored[n] = true
		}
	}
}

// Diff returns one FieldChange per field whose value differs between old and
// new under value equality. Fields present in only one snapshot are treated
// as present with a nil value in the other, which makes Diff(nil, state) the
// create form and Diff(state, nil) its mirror.
//
// The only error is a joined ErrTypeMismatch naming mismatched fields; the
// change list is complete regardless.
func Diff(oldState, newState Snapshot, opts ...Option) ([]FieldChange, error) {
	cfg := config{ignored: make(map[string]bool)}
	for _, opt := range opts {
		opt(&cfg)
	}

	var changes []FieldChange
	var mismatch error
	seen := make(map[string]bool, len(oldState))

	for _, f := range oldState {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		if cfg.ignored[f.Name] {
			continue
		}
		newVal, _ := newState.Get(f.Name)
		change, ok, err := compare(f.Name, f.Value, newVal)
		if err != nil {
			mismatch = errors.Join(mismatch, err)
		}
		if ok {
			changes = append(changes, change)
		}
	}

	// Fields introduced by the new snapshot, in its order.
	for _, f := range newState {
		if seen[f.Name] || cfg.ignored[f.Name] {
			continue
		}
		seen[f.Name] = true
		change, ok, err := compare(f.Name, nil, f.Value)
		if err != nil {
			mismatch = errors.Join(mismatch, err)
		}
		if ok {
			changes = append(changes, change)
		}
	}

	return changes, mismatch
}

// compare reports whether a field changed, plus an advisory mismatch error.
func compare(name string, oldVal, newVal any) (FieldChange, bool, error) {
	oldJSON := canonical(oldVal)
	newJSON := canonical(newVal)
	if oldJSON == newJSON {
		return FieldChange{}, false, nil
	}

	change := FieldChange{FieldName: name, OldValue: oldVal, NewValue: newVal}

	if oldJSON != "null" && newJSON != "null" && shape(oldJSON) != shape(newJSON) {
		return change, true, fmt.Errorf("%w: field %q", ErrTypeMismatch, name)
	}
	return change, true, nil
}

// canonical renders a value as its JSON text, the representation equality is
// defined over. Unserializable values fall back to their fmt rendering so the
// engine never fails outright on odd input.
func canonical(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(b)
}

// shape classifies JSON text by its leading token: string, number, bool,
// object, or array.
func shape(jsonText string) byte {
	if jsonText == "" {
		return 'n'
	}
	switch c := jsonText[0]; c {
	case '"':
		return 's'
	case '{':
		return 'o'
	case '[':
		return 'a'
	case 't', 'f':
		return 'b'
	case 'n':
		return 'n'
	default:
		return '0'
	}
}

// EncodeValue serializes a change value for storage as opaque text.
// Returns nil for nil input, matching the null oldValue/newValue convention
// on create and delete records.
func EncodeValue(v any) *string {
	if v == nil {
		return nil
	}
	s := canonical(v)
	return &s
}

package vm

// entry is one slot in a Table. A nil Key with a true Value marks a
// tombstone (spec.md §3): a deleted slot kept so that probe sequences
// past it stay valid.
type entry struct {
	Key   *ObjString
	Value Value
}

func (e entry) isTombstone() bool { return e.Key == nil && e.Value.Kind == ValBool && e.Value.Bool }

// Table is an open-addressed hash map from interned strings to Values,
// with linear probing and tombstone deletion (spec.md §4.3). Capacity
// grows 8, 16, 32, ... whenever the load factor would exceed 0.75.
type Table struct {
	count    int // live entries plus tombstones; grow recounts live entries only
	entries  []entry
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{}
}

const tableMaxLoad = 0.75

// Get looks up key and reports whether it was present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return NilValue, false
	}
	e := t.find(t.entries, key)
	if e.Key == nil {
		return NilValue, false
	}
	return e.Value, true
}

// Set installs value for key, growing the table first if needed. It
// returns true if key was not present (including when the insert reuses a
// tombstone slot) and false if it overwrote an existing entry for key.
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := t.find(t.entries, key)
	isNewKey := e.Key == nil
	if isNewKey && !e.isTombstone() {
		t.count++
	}
	e.Key = key
	e.Value = value
	return isNewKey
}

// Delete removes key, leaving a tombstone behind so later probes that
// passed through this slot remain valid. Reports whether key was present.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = BoolValue(true) // tombstone marker
	return true
}

// AddAll copies every live entry of t into dst (used by OP_INHERIT to
// copy a superclass's method table into the subclass's).
func (t *Table) AddAll(dst *Table) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil {
			dst.Set(e.Key, e.Value)
		}
	}
}

// FindString looks up by raw content rather than by *ObjString identity:
// it's the probe the string interner uses (spec.md §4.3) to discover
// whether a byte sequence already has a canonical ObjString, comparing
// length, hash, and contents instead of pointer identity.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash % capacity
	for {
		e := &t.entries[index]
		if e.Key == nil {
			if !e.isTombstone() {
				return nil
			}
		} else if e.Key.Hash == hash && e.Key.Chars == chars {
			return e.Key
		}
		index = (index + 1) % capacity
	}
}

// find runs the probe sequence for key over entries, stopping at either
// the matching key or the first empty (non-tombstone) slot — reusing the
// first tombstone seen along the way, per spec.md §4.3.
func (t *Table) find(entries []entry, key *ObjString) *entry {
	capacity := uint32(len(entries))
	index := key.Hash % capacity
	var tombstone *entry
	for {
		e := &entries[index]
		if e.Key == nil {
			if !e.isTombstone() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.Key == key {
			return e
		}
		index = (index + 1) % capacity
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// grow rebuilds the table at the new capacity by reinserting every live
// entry; tombstones are dropped in the process and count is recomputed.
func (t *Table) grow(capacity int) {
	fresh := make([]entry, capacity)
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key == nil {
			continue
		}
		dest := t.find(fresh, e.Key)
		dest.Key = e.Key
		dest.Value = e.Value
		t.count++
	}
	t.entries = fresh
}

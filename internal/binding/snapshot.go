package binding

// Entry is one channel binding inside a Snapshot.
type Entry struct {
	Channel string
	Binding Binding
}

// Snapshot is an ordered, immutable view of the binding table.
// Construct via Merge or NewSnapshot; the zero value is an empty table.
type Snapshot struct {
	entries []Entry
	index   map[string]int
}

// NewSnapshot builds a Snapshot from entries. A channel that appears more
// than once keeps the position of its first occurrence and the value of its
// last one.
func NewSnapshot(entries ...Entry) Snapshot {
	s := Snapshot{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		s.put(e)
	}
	return s
}

// Merge combines the mouse table followed by the keyboard table. A keyboard
// binding on a channel already bound to the mouse replaces it in place.
func Merge(mouse, keyboard []Entry) Snapshot {
	all := make([]Entry, 0, len(mouse)+len(keyboard))
	all = append(all, mouse...)
	all = append(all, keyboard...)
	return NewSnapshot(all...)
}

func (s *Snapshot) put(e Entry) {
	if i, ok := s.index[e.Channel]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.Channel] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Len returns the number of bound channels.
func (s Snapshot) Len() int { return len(s.entries) }

// Entries returns a copy of the bindings in iteration order.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Lookup returns the binding for channel.
func (s Snapshot) Lookup(channel string) (Binding, bool) {
	i, ok := s.index[channel]
	if !ok {
		return Binding{}, false
	}
	return s.entries[i].Binding, true
}

// StateKeys returns the distinct state keys referenced by the snapshot in
// first-seen order.
func (s Snapshot) StateKeys() []string {
	seen := make(map[string]struct{}, len(s.entries))
	keys := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		k := e.Binding.StateKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Equal reports structural equality over the channel mapping.
// Iteration order is not part of equality.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for _, e := range s.entries {
		b, ok := other.Lookup(e.Channel)
		if !ok || b != e.Binding {
			return false
		}
	}
	return true
}

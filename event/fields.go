package event

// Fields is an ordered string->Value mapping. Key order is the
// parser-observed insertion order and is preserved across formatting
// (spec.md §3 invariant); deleting a key removes it from both the index
// and the order slice.
type Fields struct {
	order []string
	index map[string]int
	vals  []Value
}

// NewFields returns an empty ordered map.
func NewFields() *Fields {
	return &Fields{index: make(map[string]int)}
}

// Get returns a field's value and whether it is present.
func (f *Fields) Get(key string) (Value, bool) {
	i, ok := f.index[key]
	if !ok {
		return Value{}, false
	}
	return f.vals[i], true
}

// Set inserts or overwrites a field, preserving original insertion
// position on overwrite and appending on first insertion.
func (f *Fields) Set(key string, v Value) {
	if i, ok := f.index[key]; ok {
		f.vals[i] = v
		return
	}
	f.index[key] = len(f.order)
	f.order = append(f.order, key)
	f.vals = append(f.vals, v)
}

// Delete removes a field if present, compacting the order slice and
// re-indexing everything after it.
func (f *Fields) Delete(key string) {
	i, ok := f.index[key]
	if !ok {
		return
	}
	f.order = append(f.order[:i], f.order[i+1:]...)
	f.vals = append(f.vals[:i], f.vals[i+1:]...)
	delete(f.index, key)
	for k := i; k < len(f.order); k++ {
		f.index[f.order[k]] = k
	}
}

// Keys returns the field names in insertion order.
func (f *Fields) Keys() []string {
	return f.order
}

// Len returns the number of fields.
func (f *Fields) Len() int { return len(f.order) }

// Clone performs a deep copy preserving key order.
func (f *Fields) Clone() *Fields {
	out := &Fields{
		order: append([]string(nil), f.order...),
		index: make(map[string]int, len(f.index)),
		vals:  make([]Value, len(f.vals)),
	}
	for k, v := range f.index {
		out.index[k] = v
	}
	for i, v := range f.vals {
		out.vals[i] = v.Clone()
	}
	return out
}

// Project returns a new Fields retaining only the given keys, in the
// order they appear in this map (not the order of `keys`), implementing
// the projection rule from DESIGN.md's Open Question resolution.
func (f *Fields) Project(keep map[string]bool) *Fields {
	out := NewFields()
	for _, k := range f.order {
		if keep[k] {
			v, _ := f.Get(k)
			out.Set(k, v)
		}
	}
	return out
}

// Remove returns a new Fields with the given keys removed.
func (f *Fields) Remove(drop map[string]bool) *Fields {
	out := NewFields()
	for _, k := range f.order {
		if drop[k] {
			continue
		}
		v, _ := f.Get(k)
		out.Set(k, v)
	}
	return out
}

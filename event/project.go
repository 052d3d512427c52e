package event

// Project narrows ev's fields down to the set the output-projection
// settings describe (spec.md §6's `--keys`/`--exclude-keys`/`--core`):
// keys first (or every field, if keys is empty and core is unset),
// subtract exclude-keys,
// then union the core fields back in if core is set. A no-op call
// (all three args empty/false) leaves ev untouched.
func Project(ev *Event, keys, excludeKeys []string, core bool) {
	if len(keys) == 0 && len(excludeKeys) == 0 && !core {
		return
	}

	keep := map[string]bool{}
	if len(keys) > 0 {
		for _, k := range keys {
			keep[k] = true
		}
	} else if !core {
		for _, k := range ev.Fields.Keys() {
			keep[k] = true
		}
	}
	for _, k := range excludeKeys {
		delete(keep, k)
	}
	if core {
		for _, k := range []string{FieldTimestamp, FieldLevel, FieldMessage} {
			if _, ok := ev.Fields.Get(k); ok {
				keep[k] = true
			}
		}
	}
	ev.Fields = ev.Fields.Project(keep)
}

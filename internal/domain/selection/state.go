package selection

// State is an immutable selection snapshot.
//
//   - ModeNone: BaseFilter is nil, both sets are empty.
//   - ModeManual: SelectedIDs is non-empty, BaseFilter is nil, ExcludedIDs is empty.
//   - ModeAllFiltered: BaseFilter is set, ExcludedIDs may be empty, SelectedIDs is unused.
//
// Transitions return a new State and never modify the receiver.
type State[ID comparable, F any] struct {
	Mode        Mode    `json:"mode"`
	BaseFilter  *F      `json:"baseFilter,omitempty"`
	SelectedIDs Set[ID] `json:"selectedIds"`
	ExcludedIDs Set[ID] `json:"excludedIds"`
}

// Empty returns a State in ModeNone.
func Empty[ID comparable, F any]() State[ID, F] {
	return State[ID, F]{
		Mode:        ModeNone,
		SelectedIDs: Set[ID]{},
		ExcludedIDs: Set[ID]{},
	}
}

// Reset clears the selection.
func (s State[ID, F]) Reset() State[ID, F] {
	return Empty[ID, F]()
}

// SelectAllFiltered selects everything matching f. Previous exclusions and
// manual picks are always dropped, including when f equals the current filter.
func (s State[ID, F]) SelectAllFiltered(f F) State[ID, F] {
	return State[ID, F]{
		Mode:        ModeAllFiltered,
		BaseFilter:  &f,
		SelectedIDs: Set[ID]{},
		ExcludedIDs: Set[ID]{},
	}
}

// Toggle sets the membership of a single identifier.
//
// In ModeAllFiltered it edits the exclusion list. Otherwise it edits the
// manual set, entering ModeManual on the first pick and falling back to
// ModeNone once the last pick is removed.
func (s State[ID, F]) Toggle(v ID, selected bool) State[ID, F] {
	if s.Mode == ModeAllFiltered {
		excluded := s.ExcludedIDs.Has(v)
		if selected != excluded {
			// already in the requested state
			return s
		}
		next := s.ExcludedIDs.Clone()
		if selected {
			next.Remove(v)
		} else {
			next.Add(v)
		}
		return State[ID, F]{
			Mode:        ModeAllFiltered,
			BaseFilter:  s.BaseFilter,
			SelectedIDs: Set[ID]{},
			ExcludedIDs: next,
		}
	}

	if selected == s.SelectedIDs.Has(v) {
		return s
	}

	next := s.SelectedIDs.Clone()
	if selected {
		next.Add(v)
	} else {
		next.Remove(v)
	}
	if next.Len() == 0 {
		return Empty[ID, F]()
	}
	return State[ID, F]{
		Mode:        ModeManual,
		SelectedIDs: next,
		ExcludedIDs: Set[ID]{},
	}
}

// Scope returns the captured filter of an all-filtered selection.
func (s State[ID, F]) Scope() (F, bool) {
	if s.Mode != ModeAllFiltered || s.BaseFilter == nil {
		var zero F
		return zero, false
	}
	return *s.BaseFilter, true
}

// IsEmpty reports whether nothing is selected.
func (s State[ID, F]) IsEmpty() bool {
	return s.Mode == ModeNone || s.Mode == ""
}

// Clone returns a deep copy of the sets. The filter pointer is copied by value.
func (s State[ID, F]) Clone() State[ID, F] {
	out := State[ID, F]{
		Mode:        s.Mode,
		SelectedIDs: s.SelectedIDs.Clone(),
		ExcludedIDs: s.ExcludedIDs.Clone(),
	}
	if out.Mode == "" {
		out.Mode = ModeNone
	}
	if s.BaseFilter != nil {
		f := *s.BaseFilter
		out.BaseFilter = &f
	}
	return out
}

// --- Derived values ---

// IsSelected reports whether v is part of the selection.
func IsSelected[ID comparable, F any](s State[ID, F], v ID) bool {
	switch s.Mode {
	case ModeAllFiltered:
		return !s.ExcludedIDs.Has(v)
	case ModeManual:
		return s.SelectedIDs.Has(v)
	default:
		return false
	}
}

// SelectedCount estimates the number of selected items.
//
// total is the number of items matching the current filter as reported by
// the server; nil means it is not known yet. A manual selection ignores it.
// An all-filtered selection with an unknown total counts as zero, and a
// stale total smaller than the exclusion list is floored at zero.
func SelectedCount[ID comparable, F any](s State[ID, F], total *int64) int64 {
	switch s.Mode {
	case ModeManual:
		return int64(s.SelectedIDs.Len())
	case ModeAllFiltered:
		if total == nil {
			return 0
		}
		n := *total - int64(s.ExcludedIDs.Len())
		if n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// FilterChanged reports whether an all-filtered selection was captured
// against a scope different from current. Other modes never report a change.
func FilterChanged[ID comparable, F any](s State[ID, F], current F, equal func(a, b F) bool) bool {
	base, ok := s.Scope()
	if !ok {
		return false
	}
	return !equal(base, current)
}

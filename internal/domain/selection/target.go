package selection

// Target is what a bulk action runs against.
//
// A manual selection resolves to explicit IDs. An all-filtered selection
// resolves to the captured filter plus the exclusion list, leaving
// identifier resolution to the backend.
type Target[ID comparable, F any] struct {
	Mode        Mode `json:"mode"`
	IDs         []ID `json:"ids,omitempty"`
	Filter      *F   `json:"filter,omitempty"`
	ExcludedIDs []ID `json:"excludedIds,omitempty"`
}

// TargetOf converts a snapshot into a Target. It returns false for an empty
// selection; refusing to run is up to the caller.
func TargetOf[ID comparable, F any](s State[ID, F]) (Target[ID, F], bool) {
	switch s.Mode {
	case ModeManual:
		if s.SelectedIDs.Len() == 0 {
			return Target[ID, F]{}, false
		}
		return Target[ID, F]{Mode: ModeManual, IDs: s.SelectedIDs.Slice()}, true
	case ModeAllFiltered:
		f, ok := s.Scope()
		if !ok {
			return Target[ID, F]{}, false
		}
		return Target[ID, F]{
			Mode:        ModeAllFiltered,
			Filter:      &f,
			ExcludedIDs: s.ExcludedIDs.Slice(),
		}, true
	default:
		return Target[ID, F]{}, false
	}
}

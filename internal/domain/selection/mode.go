// Package selection models bulk selection over a server-filtered, paginated collection.
//
// A selection is either empty, an explicit set of identifiers picked by hand,
// or "everything matching a filter" minus a set of exceptions. The filter is
// opaque to this package: it is captured verbatim and handed back to whoever
// executes the bulk action, so identifiers are resolved server-side.
package selection

// Mode is the active selection strategy.
type Mode string

const (
	ModeNone        Mode = "none"
	ModeManual      Mode = "manual"
	ModeAllFiltered Mode = "all_filtered"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeNone, ModeManual, ModeAllFiltered:
		return true
	}
	return false
}

func (m Mode) String() string {
	return string(m)
}

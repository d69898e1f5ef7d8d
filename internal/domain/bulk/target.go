package bulk

import (
	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
)

// ResolveTarget turns a selection snapshot into the backend request shape.
// Manual selections send identifiers, all-filtered selections send the
// captured scope plus exclusions. An empty selection is refused.
func ResolveTarget(action Action, s listing.Selection) (listing.Target, error) {
	t, ok := selection.TargetOf(s)
	if !ok {
		return listing.Target{}, apperror.NewEmptySelection(string(action))
	}
	if t.Mode == selection.ModeAllFiltered {
		if err := t.Filter.Validate(); err != nil {
			return listing.Target{}, err
		}
	}
	return t, nil
}

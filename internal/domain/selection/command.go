package selection

import (
	"sellerdesk/internal/core/apperror"
)

// CommandType names a selection transition.
type CommandType string

const (
	CommandReset             CommandType = "reset"
	CommandSelectAllFiltered CommandType = "select_all_filtered"
	CommandToggle            CommandType = "toggle"
)

// Command is a serializable request for one transition.
type Command[ID comparable, F any] struct {
	Type     CommandType `json:"type"`
	ID       ID          `json:"id"`
	Selected bool        `json:"selected"`
	Filter   *F          `json:"filter,omitempty"`
}

// ResetCommand builds a reset command.
func ResetCommand[ID comparable, F any]() Command[ID, F] {
	return Command[ID, F]{Type: CommandReset}
}

// SelectAllCommand builds a select-all-filtered command for f.
func SelectAllCommand[ID comparable, F any](f F) Command[ID, F] {
	return Command[ID, F]{Type: CommandSelectAllFiltered, Filter: &f}
}

// ToggleCommand builds a toggle command.
func ToggleCommand[ID comparable, F any](v ID, selected bool) Command[ID, F] {
	return Command[ID, F]{Type: CommandToggle, ID: v, Selected: selected}
}

// Validate checks that the command can be applied.
func (c Command[ID, F]) Validate() error {
	switch c.Type {
	case CommandReset, CommandToggle:
		return nil
	case CommandSelectAllFiltered:
		if c.Filter == nil {
			return apperror.NewValidation("select_all_filtered requires a filter").
				WithDetail("type", c.Type)
		}
		return nil
	default:
		return apperror.NewValidation("unknown selection command").
			WithDetail("type", c.Type)
	}
}

// Apply is the selection reducer. It is pure: s is left untouched and the
// result shares no mutable state with it. Unknown commands return s as is.
func Apply[ID comparable, F any](s State[ID, F], cmd Command[ID, F]) State[ID, F] {
	switch cmd.Type {
	case CommandReset:
		return s.Reset()
	case CommandSelectAllFiltered:
		var f F
		if cmd.Filter != nil {
			f = *cmd.Filter
		}
		return s.SelectAllFiltered(f)
	case CommandToggle:
		return s.Toggle(cmd.ID, cmd.Selected)
	default:
		return s
	}
}

// ApplyAll folds a batch of commands over s.
func ApplyAll[ID comparable, F any](s State[ID, F], cmds ...Command[ID, F]) State[ID, F] {
	for _, cmd := range cmds {
		s = Apply(s, cmd)
	}
	return s
}

package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
)

type testCommand = Command[string, testFilter]

func TestApply_MatchesTransitions(t *testing.T) {
	f := testFilter{Status: "active"}
	base := Empty[string, testFilter]().Toggle("a", true)

	assert.Equal(t, base.Reset(), Apply(base, ResetCommand[string, testFilter]()))
	assert.Equal(t, base.SelectAllFiltered(f), Apply(base, SelectAllCommand[string](f)))
	assert.Equal(t, base.Toggle("b", true), Apply(base, ToggleCommand[string, testFilter]("b", true)))
}

func TestApply_UnknownCommandKeepsState(t *testing.T) {
	s := allFiltered(testFilter{}, "x")

	got := Apply(s, testCommand{Type: "bogus"})

	assert.Equal(t, s, got)
}

func TestApply_LeavesPreviousSnapshotUntouched(t *testing.T) {
	prev := allFiltered(testFilter{Status: "active"}, "x")
	before := prev.Clone()

	_ = ApplyAll(prev,
		ToggleCommand[string, testFilter]("y", false),
		ToggleCommand[string, testFilter]("x", true),
		ResetCommand[string, testFilter](),
	)

	assert.Equal(t, before, prev)
}

func TestApplyAll_Sequence(t *testing.T) {
	got := ApplyAll(Empty[string, testFilter](),
		SelectAllCommand[string](testFilter{Search: "boots"}),
		ToggleCommand[string, testFilter]("x", false),
		ToggleCommand[string, testFilter]("y", false),
	)

	assert.Equal(t, int64(118), SelectedCount(got, total(120)))
}

func TestCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     testCommand
		wantErr bool
	}{
		{"reset", ResetCommand[string, testFilter](), false},
		{"toggle", ToggleCommand[string, testFilter]("a", true), false},
		{"select all", SelectAllCommand[string](testFilter{}), false},
		{"select all without filter", testCommand{Type: CommandSelectAllFiltered}, true},
		{"unknown", testCommand{Type: "explode"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestCommand_DecodeJSON(t *testing.T) {
	var cmd testCommand
	err := json.Unmarshal([]byte(`{"type":"toggle","id":"sku-1","selected":false}`), &cmd)
	require.NoError(t, err)

	assert.Equal(t, CommandToggle, cmd.Type)
	assert.Equal(t, "sku-1", cmd.ID)
	assert.False(t, cmd.Selected)
}

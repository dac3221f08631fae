package statemachine

import (
	"context"
	"testing"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	tests := []struct {
		name        string
		transitions []Transition[ticketState]
		wantErr     string
	}{
		{
			name:    "empty table",
			wantErr: "no transitions",
		},
		{
			name: "missing target",
			transitions: []Transition[ticketState]{
				{Source: ticketOpen, Trigger: "submit"},
			},
			wantErr: "needs source and target",
		},
		{
			name: "ambiguous trigger without guards",
			transitions: []Transition[ticketState]{
				{Source: ticketOpen, Target: ticketReview, Trigger: "go"},
				{Source: ticketOpen, Target: ticketClosed, Trigger: "go"},
			},
			wantErr: "ambiguous trigger",
		},
		{
			name: "same trigger from different sources",
			transitions: []Transition[ticketState]{
				{Source: ticketOpen, Target: ticketClosed, Trigger: "cancel"},
				{Source: ticketReview, Target: ticketClosed, Trigger: "cancel"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable("ticket", tt.transitions...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, table.Transitions(), len(tt.transitions))
		})
	}
}

func TestTable_Queries(t *testing.T) {
	table := ticketTable(t)

	assert.Equal(t, "ticket", table.Name())
	assert.Equal(t, []ticketState{ticketArchived, ticketClosed, ticketOpen, ticketReview}, table.States())
	assert.Equal(t, []string{"abandon", "archive", "close", "reopen", "submit"}, table.Triggers())
	assert.Len(t, table.TransitionsFrom(ticketOpen), 2)
	assert.Len(t, table.TransitionsTo(ticketClosed), 2)
	assert.Empty(t, table.TransitionsFrom(ticketArchived))

	// Mutating the returned slice must not affect the table.
	all := table.Transitions()
	all[0].Target = ticketArchived
	assert.Equal(t, ticketReview, table.Transitions()[0].Target)
}

func TestMustTable_Panics(t *testing.T) {
	assert.Panics(t, func() { MustTable[ticketState]("bad") })
}

func TestHandlers(t *testing.T) {
	h := NewHandlers[*ticket]()
	noop := func(context.Context, *ticket, Args) error { return nil }

	require.NoError(t, h.RegisterHook("x", noop))
	err := h.RegisterHook("x", noop)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	err = h.RegisterGuard("", nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	err = Validate(ticketTable(t), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guard:is_approved")
	assert.Contains(t, err.Error(), "hook:log_before")

	assert.NoError(t, Validate(ticketTable(t), ticketHandlers(t)))
}

package transaction

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInput(t *testing.T) {
	valid := Input{
		Description: "  Groceries ",
		Amount:      1250,
		Category:    " food",
		Type:        TypeExpense,
		Date:        NewDate(2026, time.March, 4),
	}

	got, err := normalizeInput(valid)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Description)
	assert.Equal(t, "food", got.Category)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "blank description", mutate: func(in *Input) { in.Description = "   " }},
		{name: "long description", mutate: func(in *Input) { in.Description = strings.Repeat("a", 201) }},
		{name: "blank category", mutate: func(in *Input) { in.Category = "" }},
		{name: "long category", mutate: func(in *Input) { in.Category = strings.Repeat("é", 51) }},
		{name: "unknown type", mutate: func(in *Input) { in.Type = "transfer" }},
		{name: "zero amount", mutate: func(in *Input) { in.Amount = 0 }},
		{name: "negative amount", mutate: func(in *Input) { in.Amount = -1 }},
		{name: "missing date", mutate: func(in *Input) { in.Date = Date{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := normalizeInput(in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateFilter(t *testing.T) {
	assert.NoError(t, validateFilter(Filter{}))
	assert.NoError(t, validateFilter(Filter{From: NewDate(2026, 3, 1), To: NewDate(2026, 3, 1)}))
	assert.ErrorIs(t, validateFilter(Filter{Type: "gift"}), ErrValidation)
	assert.ErrorIs(t, validateFilter(Filter{From: NewDate(2026, 3, 2), To: NewDate(2026, 3, 1)}), ErrValidation)
}

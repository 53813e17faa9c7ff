package transaction

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "12", want: 1200},
		{in: "12.5", want: 1250},
		{in: "12.05", want: 1205},
		{in: "0.99", want: 99},
		{in: "-3.75", want: -375},
		{in: "1.234", wantErr: true},
		{in: "1.", wantErr: true},
		{in: ".5", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}{A: 1205, B: -50})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.05,"b":-0.50}`, string(data))

	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"amount":19.9,"date":"2026-02-28"}`), &in))
	assert.Equal(t, Money(1990), in.Amount)
	assert.Equal(t, NewDate(2026, time.February, 28), in.Date)

	assert.Error(t, json.Unmarshal([]byte(`{"amount":1.999}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"date":"28/02/2026"}`), &in))
}

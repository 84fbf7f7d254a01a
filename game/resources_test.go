package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Resources
		wantErr bool
	}{
		{name: "empty", input: "", want: Resources{}},
		{name: "single", input: "X: 10", want: Resources{"X": 10}},
		{name: "multiple", input: "X: 1, Dollars: 55", want: Resources{"X": 1, "Dollars": 55}},
		{name: "fractional", input: "Gold: 2.5", want: Resources{"Gold": 2.5}},
		{name: "duplicate keys accumulate", input: "X: 1, X: 2", want: Resources{"X": 3}},
		{name: "missing colon", input: "X 10", wantErr: true},
		{name: "negative quantity", input: "X: -1", wantErr: true},
		{name: "non numeric", input: "X: lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseResources(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestResourcesSubNoPartialMutation(t *testing.T) {
	t.Parallel()

	r := Resources{"X": 2, "Dollars": 10}
	_, err := r.Sub(Resources{"X": 1, "Dollars": 20})
	require.Error(t, err)
	require.True(t, r.Equal(Resources{"X": 2, "Dollars": 10}))
}

func TestResourcesAbsentKeyIsZero(t *testing.T) {
	t.Parallel()

	r := Resources{"X": 1}
	require.Zero(t, r.Get("Y"))
	require.True(t, r.Add(Resources{"Y": 0}).Equal(r))
}

func TestResourcesStringRoundTrip(t *testing.T) {
	t.Parallel()

	r := Resources{"X": 1, "Dollars": 55, "Gold": 2.5}
	parsed, err := ParseResources(r.String())
	require.NoError(t, err)
	require.True(t, parsed.Equal(r))
}

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		message string
		want    MessageType
	}{
		{"I accept your offer", TypeAcceptance},
		{"Deal, let's do it", TypeAcceptance},
		{"I must refuse this proposal", TypeRejection},
		{"No thanks, that is too low", TypeRejection},
		{"Let us form an alliance", TypeAlliance},
		{"I will betray them at dawn", TypeBetrayal},
		{"I propose 50 dollars", TypeOffer},
		{"How about a different split", TypeOffer},
		{"My counter is 45", TypeCounteroffer},
		{"What lovely weather we are having", TypeChat},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ClassifyMessage(tc.message))
		})
	}
}

func TestImportanceOf(t *testing.T) {
	t.Parallel()

	// No keywords: base score only.
	require.Equal(t, 0.5, ImportanceOf("hello there"))

	// One keyword: base plus one boost.
	require.InDelta(t, 0.6, ImportanceOf("I promise nothing"), 1e-9)

	// Boost caps at 0.4 regardless of keyword count.
	loaded := "alliance betray attack defend promise guarantee deal treaty agree support"
	require.InDelta(t, 0.9, ImportanceOf(loaded), 1e-9)
}

func TestIsCritical(t *testing.T) {
	t.Parallel()

	require.True(t, IsCritical("We have a deal"))
	require.True(t, IsCritical("I promise to deliver tomorrow"))
	require.True(t, IsCritical("they will declare war"))
	require.False(t, IsCritical("just making small talk"))
	require.False(t, IsCritical("I promise"))
}

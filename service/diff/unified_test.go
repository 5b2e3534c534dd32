package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	srv := New()
	result := srv.Compute("A\nB\nC\n", "A\nX\nC\n")
	patch, err := Unified(result, "design.md")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(patch, "--- a/design.md\n+++ b/design.md\n"), patch)
	assert.Contains(t, patch, "@@ -1,3 +1,3 @@\n A\n-B\n+X\n C\n")

	empty, err := Unified(srv.Compute("A\n", "A\n"), "design.md")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestApplyPatch_RoundTrip(t *testing.T) {
	testCases := []struct {
		description string
		old         string
		new         string
	}{
		{description: "replace", old: "A\nB\nC\n", new: "A\nX\nC\n"},
		{description: "append", old: "A\nB\n", new: "A\nB\nC\nD\n"},
		{description: "prepend", old: "B\nC\n", new: "A\nB\nC\n"},
		{description: "create", old: "", new: "A\n"},
		{description: "multi hunk", old: "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n", new: "1\nX\n3\n4\n5\n6\n7\n8\n9\n10\nY\n12\n"},
		{description: "drop trailing newline", old: "A\nB\n", new: "A\nB"},
	}
	srv := New()
	for _, testCase := range testCases {
		patch, err := Unified(srv.Compute(testCase.old, testCase.new), "doc.md")
		require.NoError(t, err, testCase.description)
		actual, err := ApplyPatch(testCase.old, patch)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.new, actual, testCase.description)
	}
}

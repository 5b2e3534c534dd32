package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

func TestCountLines(t *testing.T) {
	testCases := []struct {
		text   string
		expect int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"\n", 1},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, CountLines(testCase.text), "%q", testCase.text)
	}
}

func TestService_ReadLocal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "design.md"), []byte("A\nB\nC\n"), 0o644))

	srv := New(root)
	doc, err := srv.Read(ctx, "docs/design.md")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\nC\n", doc.Content)
	assert.EqualValues(t, 6, doc.Stats.Size)
	assert.Equal(t, 3, doc.Stats.Lines)
	assert.False(t, doc.Stats.LastModified.IsZero())
}

func TestService_ReadErrors(t *testing.T) {
	ctx := context.Background()
	srv := New(t.TempDir())

	_, err := srv.Read(ctx, "missing.md")
	assert.True(t, errors.Is(err, model.ErrIOFailure))

	_, err = srv.Read(ctx, "../outside.md")
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = srv.Read(ctx, "")
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestService_WriteReadMemory(t *testing.T) {
	ctx := context.Background()
	srv := New(fmt.Sprintf("mem://localhost/project-%d", time.Now().UnixNano()))
	require.NoError(t, srv.Write(ctx, "specs/auth/requirements.md", "hello"))
	doc, err := srv.Read(ctx, "specs/auth/requirements.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Content)
	assert.Equal(t, 1, doc.Stats.Lines)
}

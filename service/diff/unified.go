package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	sgdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

const noNewlineMarker = "\\ No newline at end of file\n"

// Unified renders result as a unified patch for name. An empty result renders
// as an empty string.
func Unified(result *model.DiffResult, name string) (string, error) {
	if result.IsEmpty() {
		return "", nil
	}
	fileDiff := &sgdiff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
	}
	for _, chunk := range result.Chunks {
		var body bytes.Buffer
		for _, line := range chunk.Lines {
			switch line.Type {
			case model.LineAdd:
				body.WriteByte('+')
			case model.LineDelete:
				body.WriteByte('-')
			default:
				body.WriteByte(' ')
			}
			body.WriteString(line.Content)
			body.WriteByte('\n')
			if line.NoNewline {
				body.WriteString(noNewlineMarker)
			}
		}
		fileDiff.Hunks = append(fileDiff.Hunks, &sgdiff.Hunk{
			OrigStartLine: int32(chunk.OldStart),
			OrigLines:     int32(chunk.OldLines),
			NewStartLine:  int32(chunk.NewStart),
			NewLines:      int32(chunk.NewLines),
			Body:          body.Bytes(),
		})
	}
	data, err := sgdiff.PrintFileDiff(fileDiff)
	if err != nil {
		return "", fmt.Errorf("failed to render diff for %s: %w", name, err)
	}
	return string(data), nil
}

// ApplyPatch applies a single-file unified patch, such as one produced by
// Unified, to old.
func ApplyPatch(old, patch string) (string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return "", fmt.Errorf("failed to parse patch: %w", err)
	}
	switch len(files) {
	case 0:
		return old, nil
	case 1:
	default:
		return "", fmt.Errorf("%w: patch touches %d files", ErrMismatch, len(files))
	}
	var out bytes.Buffer
	if err = gitdiff.Apply(&out, strings.NewReader(old), files[0]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return out.String(), nil
}

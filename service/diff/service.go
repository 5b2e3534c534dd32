// Package diff computes line-level differences between two versions of an
// artifact and renders or re-applies them.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// DefaultContextLines is the number of unchanged lines kept around a change.
const DefaultContextLines = 3

// ErrMismatch is returned when a diff does not fit the content it is applied to.
var ErrMismatch = errors.New("diff does not apply")

// Service computes diffs. It is stateless and safe for concurrent use.
type Service struct {
	contextLines int
}

// Compute returns the structural difference from old to new.
//
// Lines are split on "\n" and compared byte for byte; the edit is a minimal
// one built on a longest common subsequence. A final line without a
// terminator is distinct from the same line with one and is flagged with
// NoNewline so that Reconstruct stays exact.
func (s *Service) Compute(old, new string) *model.DiffResult {
	result := &model.DiffResult{Chunks: []model.DiffChunk{}}
	if old == new {
		return result
	}
	a := splitLines(old)
	b := splitLines(new)
	for _, group := range groupOpCodes(newMatcher(a, b).opCodes(), s.contextLines) {
		chunk := model.DiffChunk{}
		first, last := group[0], group[len(group)-1]
		chunk.OldStart, chunk.OldLines = hunkRange(first.I1, last.I2)
		chunk.NewStart, chunk.NewLines = hunkRange(first.J1, last.J2)
		for _, code := range group {
			switch code.Tag {
			case 'e':
				for i, j := code.I1, code.J1; i < code.I2; i, j = i+1, j+1 {
					chunk.Lines = append(chunk.Lines, newLine(model.LineNormal, i+1, j+1, a[i]))
				}
			case 'd':
				result.Deletions += code.I2 - code.I1
				chunk.Lines = appendDeletes(chunk.Lines, a, code.I1, code.I2)
			case 'i':
				result.Additions += code.J2 - code.J1
				chunk.Lines = appendAdds(chunk.Lines, b, code.J1, code.J2)
			case 'r':
				deleted, added := code.I2-code.I1, code.J2-code.J1
				result.Deletions += deleted
				result.Additions += added
				result.Changes += min(deleted, added)
				chunk.Lines = appendDeletes(chunk.Lines, a, code.I1, code.I2)
				chunk.Lines = appendAdds(chunk.Lines, b, code.J1, code.J2)
			}
		}
		result.Chunks = append(result.Chunks, chunk)
	}
	return result
}

// Reconstruct applies result to old and returns the new content. Every
// context and deleted line must match old exactly.
func (s *Service) Reconstruct(old string, result *model.DiffResult) (string, error) {
	if result == nil {
		return old, nil
	}
	lines := splitLines(old)
	var out strings.Builder
	index := 0
	for k, chunk := range result.Chunks {
		start := chunk.OldStart - 1
		if chunk.OldLines == 0 {
			start = chunk.OldStart
		}
		if start < index || start > len(lines) {
			return "", fmt.Errorf("%w: chunk %d starts at line %d", ErrMismatch, k+1, chunk.OldStart)
		}
		for ; index < start; index++ {
			out.WriteString(lines[index])
		}
		for _, line := range chunk.Lines {
			switch line.Type {
			case model.LineNormal, model.LineDelete:
				if index >= len(lines) || lines[index] != line.Text() {
					return "", fmt.Errorf("%w: %s line %d", ErrMismatch, line.Type, index+1)
				}
				if line.Type == model.LineNormal {
					out.WriteString(lines[index])
				}
				index++
			case model.LineAdd:
				out.WriteString(line.Text())
			}
		}
	}
	for ; index < len(lines); index++ {
		out.WriteString(lines[index])
	}
	return out.String(), nil
}

// splitLines splits text into lines that keep their "\n" terminator.
// A trailing newline does not produce an extra empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// hunkRange converts a 0-based half-open range into unified-diff start and
// length. An empty range starts at the line preceding it.
func hunkRange(from, to int) (int, int) {
	length := to - from
	if length == 0 {
		return from, 0
	}
	return from + 1, length
}

func newLine(lineType model.LineType, oldNumber, newNumber int, raw string) model.DiffLine {
	content, terminated := strings.CutSuffix(raw, "\n")
	return model.DiffLine{
		Type:          lineType,
		OldLineNumber: oldNumber,
		NewLineNumber: newNumber,
		Content:       content,
		NoNewline:     !terminated,
	}
}

func appendDeletes(dest []model.DiffLine, lines []string, from, to int) []model.DiffLine {
	for i := from; i < to; i++ {
		dest = append(dest, newLine(model.LineDelete, i+1, 0, lines[i]))
	}
	return dest
}

func appendAdds(dest []model.DiffLine, lines []string, from, to int) []model.DiffLine {
	for j := from; j < to; j++ {
		dest = append(dest, newLine(model.LineAdd, 0, j+1, lines[j]))
	}
	return dest
}

// New creates a diff service.
func New(options ...Option) *Service {
	ret := &Service{contextLines: DefaultContextLines}
	for _, option := range options {
		option(ret)
	}
	return ret
}

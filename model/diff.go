package model

// LineType classifies a diff line.
type LineType string

const (
	LineAdd    LineType = "add"
	LineDelete LineType = "delete"
	LineNormal LineType = "normal"
)

// DiffLine is one line of a hunk. Line numbers are 1-based; OldLineNumber is
// absent for additions and NewLineNumber for deletions. NoNewline marks the
// final line of a text that does not end with a newline.
type DiffLine struct {
	Type          LineType `json:"type"`
	OldLineNumber int      `json:"oldLineNumber,omitempty"`
	NewLineNumber int      `json:"newLineNumber,omitempty"`
	Content       string   `json:"content"`
	NoNewline     bool     `json:"noNewline,omitempty"`
}

// Text returns the line with its terminator restored.
func (l DiffLine) Text() string {
	if l.NoNewline {
		return l.Content
	}
	return l.Content + "\n"
}

// DiffChunk is a contiguous hunk with unified-diff line ranges.
type DiffChunk struct {
	OldStart int        `json:"oldStart"`
	OldLines int        `json:"oldLines"`
	NewStart int        `json:"newStart"`
	NewLines int        `json:"newLines"`
	Lines    []DiffLine `json:"lines"`
}

// DiffResult is the structural difference between two contents.
type DiffResult struct {
	Additions int         `json:"additions"`
	Deletions int         `json:"deletions"`
	Changes   int         `json:"changes"`
	Chunks    []DiffChunk `json:"chunks"`
}

// IsEmpty reports whether both sides were identical.
func (d *DiffResult) IsEmpty() bool {
	return d == nil || (d.Additions == 0 && d.Deletions == 0 && len(d.Chunks) == 0)
}

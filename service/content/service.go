// Package content reads reviewed artifacts live from the project tree.
package content

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/clock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/pathutil"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// Document is artifact content together with its stats.
type Document struct {
	Content string
	Stats   model.FileStats
}

// Reader returns the current content of an artifact given its path relative
// to the project root.
type Reader interface {
	Read(ctx context.Context, relPath string) (*Document, error)
}

// Service resolves artifact paths under a project root. The root may be a
// local directory or an afs URL such as mem://localhost/project.
type Service struct {
	root string
	fs   afs.Service
}

// Read returns the artifact content. Every failure wraps model.ErrIOFailure
// except traversal, which wraps model.ErrValidation.
func (s *Service) Read(ctx context.Context, relPath string) (*Document, error) {
	location, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	object, err := s.fs.Object(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", model.ErrIOFailure, relPath, err)
	}
	if object.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", model.ErrIOFailure, relPath)
	}
	data, err := s.fs.Download(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrIOFailure, relPath, err)
	}
	text := string(data)
	modified := object.ModTime()
	if modified.IsZero() {
		modified = clock.Now()
	}
	return &Document{
		Content: text,
		Stats: model.FileStats{
			Size:         int64(len(data)),
			Lines:        CountLines(text),
			LastModified: modified.UTC(),
		},
	}, nil
}

// Write stores content at relPath, creating parent directories.
func (s *Service) Write(ctx context.Context, relPath, content string) error {
	location, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader([]byte(content))); err != nil {
		return fmt.Errorf("%w: write %s: %v", model.ErrIOFailure, relPath, err)
	}
	return nil
}

// Root returns the project root URL.
func (s *Service) Root() string {
	return s.root
}

func (s *Service) resolve(relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", fmt.Errorf("%w: file path is required", model.ErrValidation)
	}
	base := url.Path(s.root)
	joined, err := pathutil.SafeJoin(base, relPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(joined, strings.TrimRight(base, "/")), "/")
	return url.Join(s.root, rel), nil
}

// CountLines counts lines the way the diff engine splits them: a trailing
// newline does not start an extra line and empty content has zero lines.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// New creates a content service rooted at root.
func New(root string) *Service {
	return &Service{root: url.Normalize(root, file.Scheme), fs: afs.New()}
}

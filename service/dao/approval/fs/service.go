package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/idgen"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/storeio"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/criteria"
)

// Service stores approval requests as JSON objects laid out as
// <baseURL>/<categoryName>/<id>.json. Records are replaced whole, so reads
// take no lock.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.Mutex
}

var _ dao.Service[string, model.Request] = (*Service)(nil)

// Save replaces the record of request; a concurrent Load sees either the old
// or the new record.
func (s *Service) Save(ctx context.Context, request *model.Request) error {
	if request == nil {
		return dao.ErrNilEntity
	}
	if !idgen.Valid(request.ID) {
		return fmt.Errorf("%w: %q", dao.ErrInvalidID, request.ID)
	}
	if !idgen.Valid(request.CategoryName) {
		return fmt.Errorf("%w: invalid category name %q", model.ErrValidation, request.CategoryName)
	}
	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approval %s: %w", request.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = storeio.WriteFile(ctx, s.fs, s.requestURL(request.CategoryName, request.ID), data); err != nil {
		return fmt.Errorf("failed to write approval %s: %w", request.ID, err)
	}
	return nil
}

// Load returns the approval with id from whichever category holds it.
func (s *Service) Load(ctx context.Context, id string) (*model.Request, error) {
	if !idgen.Valid(id) {
		return nil, fmt.Errorf("%w: %q", dao.ErrInvalidID, id)
	}
	location, err := s.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, location)
}

// Delete removes the approval record. Snapshot history is owned by the
// snapshot DAO and is not touched here.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !idgen.Valid(id) {
		return fmt.Errorf("%w: %q", dao.ErrInvalidID, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	location, err := s.locate(ctx, id)
	if err != nil {
		return err
	}
	if err = s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to delete approval %s: %w", id, err)
	}
	return nil
}

// List returns every approval accepted by parameters. An unreadable or
// malformed record fails the listing with model.ErrIOFailure.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error) {
	categories, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	var result []*model.Request
	for _, category := range categories {
		objects, err := s.fs.List(ctx, s.categoryURL(category), option.NewRecursive(false))
		if err != nil {
			return nil, fmt.Errorf("failed to list approvals in %s: %w", category, err)
		}
		for _, object := range objects {
			if object.IsDir() || strings.HasPrefix(object.Name(), ".") || !strings.HasSuffix(object.Name(), ".json") {
				continue
			}
			request, err := s.read(ctx, object.URL())
			if err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrIOFailure, err)
			}
			if !criteria.MatchRequest(request, parameters) {
				continue
			}
			result = append(result, request)
		}
	}
	return result, nil
}

// BaseURL returns the approvals root.
func (s *Service) BaseURL() string {
	return s.baseURL
}

func (s *Service) read(ctx context.Context, location string) (*model.Request, error) {
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read approval %s: %w", location, err)
	}
	request := &model.Request{}
	if err = json.Unmarshal(data, request); err != nil {
		return nil, fmt.Errorf("failed to decode approval %s: %w", location, err)
	}
	return request, nil
}

func (s *Service) locate(ctx context.Context, id string) (string, error) {
	categories, err := s.categories(ctx)
	if err != nil {
		return "", err
	}
	for _, category := range categories {
		candidate := s.requestURL(category, id)
		ok, err := s.fs.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check approval %s: %w", id, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("approval %s: %w", id, dao.ErrNotFound)
}

// categories lists category directories; names starting with "." are
// reserved for internal bookkeeping.
func (s *Service) categories(ctx context.Context) ([]string, error) {
	ok, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check approvals root: %w", err)
	}
	if !ok {
		return nil, nil
	}
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals root: %w", err)
	}
	root := strings.TrimRight(url.Path(s.baseURL), "/")
	var result []string
	for _, object := range objects {
		if !object.IsDir() || strings.TrimRight(url.Path(object.URL()), "/") == root {
			continue
		}
		name := object.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		result = append(result, name)
	}
	return result, nil
}

func (s *Service) categoryURL(category string) string {
	return url.Join(s.baseURL, category)
}

func (s *Service) requestURL(category, id string) string {
	return url.Join(s.categoryURL(category), id+".json")
}

// New creates a filesystem approval store rooted at baseURL, which may be a
// local path or any afs URL (e.g. mem://localhost/approvals).
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	baseURL = url.Normalize(baseURL, file.Scheme)
	ctx := context.Background()
	if ok, _ := fs.Exists(ctx, baseURL); !ok {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create approvals directory: %w", err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs}, nil
}

// Package workspace summarises the spec and steering documents of a project.
// It backs the specs and steering hub topics.
package workspace

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/pathutil"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

var (
	phases         = []string{model.PhaseRequirements, model.PhaseDesign, model.PhaseTasks}
	steeringDocs   = []string{model.SteeringProduct, model.SteeringTech, model.SteeringStructure}
	taskItemRegexp = regexp.MustCompile(`^\s*[-*]\s+\[([ xX\-])\]`)
)

// Service reads <root>/.spec-workflow/specs and <root>/.spec-workflow/steering.
type Service struct {
	root string
	fs   afs.Service
}

// Specs returns every spec directory in name order. A missing specs
// directory yields an empty list.
func (s *Service) Specs(ctx context.Context) ([]*model.Spec, error) {
	specsURL := s.specsURL()
	ok, err := s.fs.Exists(ctx, specsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check specs dir: %w", err)
	}
	result := []*model.Spec{}
	if !ok {
		return result, nil
	}
	objects, err := s.fs.List(ctx, specsURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list specs: %w", err)
	}
	root := strings.TrimRight(url.Path(specsURL), "/")
	for _, object := range objects {
		if !object.IsDir() || strings.TrimRight(url.Path(object.URL()), "/") == root || strings.HasPrefix(object.Name(), ".") {
			continue
		}
		spec, err := s.Spec(ctx, object.Name())
		if err != nil {
			return nil, err
		}
		result = append(result, spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Spec summarises the named spec.
func (s *Service) Spec(ctx context.Context, name string) (*model.Spec, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: invalid spec name %q", model.ErrValidation, name)
	}
	specURL := url.Join(s.specsURL(), name)
	object, err := s.fs.Object(ctx, specURL)
	if err != nil {
		return nil, fmt.Errorf("spec %s: %w", name, model.ErrNotFound)
	}
	spec := &model.Spec{Name: name, Phases: make(map[string]model.PhaseStatus, len(phases))}
	spec.LastModified = timestamp(object.ModTime())
	for _, phase := range phases {
		status, data := s.phase(ctx, url.Join(specURL, phase+".md"))
		spec.Phases[phase] = status
		if phase == model.PhaseTasks && status.Exists {
			progress := ParseTaskProgress(string(data))
			spec.TaskProgress = progress
			spec.Implemented = progress.Completed > 0
		}
	}
	return spec, nil
}

// Steering reports which steering documents exist.
func (s *Service) Steering(ctx context.Context) (*model.Steering, error) {
	steeringURL := url.Join(s.root, pathutil.WorkflowDir, "steering")
	result := &model.Steering{Documents: make(map[string]bool, len(steeringDocs))}
	for _, doc := range steeringDocs {
		result.Documents[doc] = false
	}
	object, err := s.fs.Object(ctx, steeringURL)
	if err != nil || !object.IsDir() {
		return result, nil
	}
	result.Exists = true
	result.LastModified = timestamp(object.ModTime())
	for _, doc := range steeringDocs {
		ok, err := s.fs.Exists(ctx, url.Join(steeringURL, doc+".md"))
		if err != nil {
			return nil, fmt.Errorf("failed to check steering %s: %w", doc, err)
		}
		result.Documents[doc] = ok
	}
	return result, nil
}

func (s *Service) phase(ctx context.Context, location string) (model.PhaseStatus, []byte) {
	object, err := s.fs.Object(ctx, location)
	if err != nil || object.IsDir() {
		return model.PhaseStatus{}, nil
	}
	data, err := s.fs.Download(ctx, object)
	if err != nil {
		return model.PhaseStatus{}, nil
	}
	return model.PhaseStatus{Exists: true, LastModified: timestamp(object.ModTime())}, data
}

func (s *Service) specsURL() string {
	return url.Join(s.root, pathutil.WorkflowDir, "specs")
}

// ParseTaskProgress counts markdown checkbox items: "[x]" is completed,
// "[-]" in progress and "[ ]" pending.
func ParseTaskProgress(content string) *model.TaskProgress {
	progress := &model.TaskProgress{}
	for _, line := range strings.Split(content, "\n") {
		match := taskItemRegexp.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		progress.Total++
		switch match[1] {
		case "x", "X":
			progress.Completed++
		case "-":
			progress.InProgress++
		default:
			progress.Pending++
		}
	}
	return progress
}

func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// New creates a workspace reader for the project at root.
func New(root string) *Service {
	return &Service{root: url.Normalize(root, file.Scheme), fs: afs.New()}
}

package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
)

// Getter is the read side used by polling helpers.
type Getter interface {
	Get(ctx context.Context, id string) (*model.Request, error)
}

// PollConfig controls WaitForDecision backoff.
type PollConfig struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultPollConfig starts at 50ms and doubles up to 2s.
func DefaultPollConfig() PollConfig {
	return PollConfig{Initial: 50 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
}

// WaitForDecision polls svc until the approval leaves pending, ctx is done or
// the approval disappears. It is a caller-side helper; the store itself never
// blocks.
func WaitForDecision(ctx context.Context, svc Getter, id string, config PollConfig) (*model.Request, error) {
	if config.Initial <= 0 {
		config.Initial = DefaultPollConfig().Initial
	}
	if config.Max < config.Initial {
		config.Max = config.Initial
	}
	if config.Factor < 1 {
		config.Factor = 1
	}
	delay := config.Initial
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for decision on %s: %w", id, ctx.Err())
		case <-timer.C:
		}
		request, err := svc.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if request.Status.IsTerminal() {
			return request, nil
		}
		timer.Reset(delay)
		delay = time.Duration(float64(delay) * config.Factor)
		if delay > config.Max {
			delay = config.Max
		}
	}
}

// Lister is the list side used by ListPending.
type Lister interface {
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error)
}

// ListPending returns pending approvals, optionally narrowed to categoryNames.
func ListPending(ctx context.Context, svc Lister, categoryNames ...string) ([]*model.Request, error) {
	parameters := []*dao.Parameter{dao.NewParameter(dao.ParamStatus, string(model.StatusPending))}
	if len(categoryNames) > 0 {
		parameters = append(parameters, dao.NewParameter(dao.ParamCategoryName, categoryNames...))
	}
	return svc.List(ctx, parameters...)
}

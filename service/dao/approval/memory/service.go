package memory

import (
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/criteria"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/store"
)

// Service is an in-memory approval store. Records are cloned on the way in
// and out.
type Service struct {
	*store.MemoryStore[string, model.Request]
}

var _ dao.Service[string, model.Request] = (*Service)(nil)

// New creates an empty in-memory approval store.
func New() *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore[string, model.Request](
			func(r *model.Request) string { return r.ID },
			func(r *model.Request) *model.Request { return r.Clone() },
			store.WithMatcher[string, model.Request](criteria.MatchRequest),
		),
	}
}

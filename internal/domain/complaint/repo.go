package complaint

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrOutcomeNotFound is returned when no ledger entry has the requested id.
var ErrOutcomeNotFound = errors.New("coding outcome not found")

// OutcomeRepository stores coding outcomes. List returns newest first.
type OutcomeRepository interface {
	Create(ctx context.Context, o *CodingOutcome) error
	GetByID(ctx context.Context, id uuid.UUID) (*CodingOutcome, error)
	List(ctx context.Context, limit, offset int) ([]*CodingOutcome, int, error)
}

type outcomeRepoMemory struct {
	mu       sync.RWMutex
	outcomes []*CodingOutcome
}

// NewMemoryOutcomeRepo returns a process-local ledger. It is the default when
// no database is configured.
func NewMemoryOutcomeRepo() OutcomeRepository {
	return &outcomeRepoMemory{}
}

func (r *outcomeRepoMemory) Create(_ context.Context, o *CodingOutcome) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	cp := *o
	r.mu.Lock()
	r.outcomes = append(r.outcomes, &cp)
	r.mu.Unlock()
	return nil
}

func (r *outcomeRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*CodingOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.outcomes {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOutcomeNotFound
}

func (r *outcomeRepoMemory) List(_ context.Context, limit, offset int) ([]*CodingOutcome, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.outcomes)
	var page []*CodingOutcome
	for i := total - 1 - offset; i >= 0 && len(page) < limit; i-- {
		cp := *r.outcomes[i]
		page = append(page, &cp)
	}
	return page, total, nil
}

package memory

import (
	"sync"
	"time"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/store"
)

// PendingSetupRepo is the process-local set of open setup wizard sessions.
type PendingSetupRepo struct {
	mu     sync.Mutex
	setups map[string]model.PendingSetup
}

var _ store.PendingSetupRepository = (*PendingSetupRepo)(nil)

func NewPendingSetupRepo() *PendingSetupRepo {
	return &PendingSetupRepo{setups: make(map[string]model.PendingSetup)}
}

func (r *PendingSetupRepo) Put(setup model.PendingSetup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setups[setup.SetupID] = setup
}

func (r *PendingSetupRepo) Get(setupID string) (model.PendingSetup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.setups[setupID]
	return s, ok
}

func (r *PendingSetupRepo) Delete(setupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.setups, setupID)
}

// DeleteCreatedBefore drops sessions created before cutoff and returns how many.
func (r *PendingSetupRepo) DeleteCreatedBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.setups {
		if s.CreatedAt.Before(cutoff) {
			delete(r.setups, id)
			removed++
		}
	}
	return removed
}

func (r *PendingSetupRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.setups)
}

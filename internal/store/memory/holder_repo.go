package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/store"
)

// HolderRepo is the process-local verified holder set.
type HolderRepo struct {
	mu      sync.RWMutex
	holders map[string]*model.VerifiedHolder
}

var _ store.HolderRepository = (*HolderRepo)(nil)

func NewHolderRepo() *HolderRepo {
	return &HolderRepo{holders: make(map[string]*model.VerifiedHolder)}
}

// Put stores holder, replacing any previous record for the same identity.
func (r *HolderRepo) Put(holder model.VerifiedHolder) {
	stored := holder.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.holders[holder.Identity] = &stored
	metrics.VerifiedHolders.Set(float64(len(r.holders)))
}

func (r *HolderRepo) Get(identity string) (model.VerifiedHolder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.holders[identity]
	if !ok {
		return model.VerifiedHolder{}, false
	}
	return h.Clone(), true
}

func (r *HolderRepo) Update(identity string, fn func(*model.VerifiedHolder)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.holders[identity]
	if !ok {
		return fmt.Errorf("holder %s: %w", identity, store.ErrNotFound)
	}
	if h.AssignedRoleIDs == nil {
		h.AssignedRoleIDs = make(map[string]struct{})
	}
	fn(h)
	return nil
}

// List returns a snapshot of all holders sorted by identity.
func (r *HolderRepo) List() []model.VerifiedHolder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.VerifiedHolder, 0, len(r.holders))
	for _, h := range r.holders {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

func (r *HolderRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.holders)
}

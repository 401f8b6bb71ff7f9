package invalidation

import (
	"context"
	"sync"
	"time"
)

var timeNow = time.Now

// StaticResolver is a MembershipResolver backed by an in-memory table.
// It serves wiring and tests; deployments replace it with a resolver
// over their real membership data.
type StaticResolver struct {
	mu      sync.RWMutex
	members map[string][]string // "<domain>/<contextID>" -> user IDs
}

// NewStaticResolver creates an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{members: make(map[string][]string)}
}

// SetMembers records the identities affected by events in a context.
func (r *StaticResolver) SetMembers(domain, contextID string, users []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[domain+"/"+contextID] = append([]string(nil), users...)
}

// AffectedUsers returns the recorded identities for a context.
func (r *StaticResolver) AffectedUsers(ctx context.Context, domain, contextID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := r.members[domain+"/"+contextID]
	return append([]string(nil), users...), nil
}

var _ MembershipResolver = (*StaticResolver)(nil)

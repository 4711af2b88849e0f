package nvr

import (
	"sync"
	"time"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
)

// DefaultAutoResetTimeout is how long a detection stays on without a new alert.
const DefaultAutoResetTimeout = 30 * time.Second

type pendingReset struct {
	timer  *time.Timer
	gen    uint64
	fireAt time.Time
}

// ResetRegistry keeps at most one pending reset per entity. The registry only
// holds the callback; what "reset" means is up to the owner. The callback must
// not call back into the registry.
type ResetRegistry struct {
	timeout time.Duration
	onFire  func(entityID string)

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingReset
}

func NewResetRegistry(timeout time.Duration, onFire func(entityID string)) *ResetRegistry {
	if timeout <= 0 {
		timeout = DefaultAutoResetTimeout
	}
	return &ResetRegistry{
		timeout: timeout,
		onFire:  onFire,
		pending: make(map[string]*pendingReset),
	}
}

// Arm cancels any pending reset for entityID and schedules a new one.
func (r *ResetRegistry) Arm(entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.pending[entityID]; ok {
		old.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.pending[entityID] = &pendingReset{
		gen:    gen,
		fireAt: time.Now().Add(r.timeout),
		timer:  time.AfterFunc(r.timeout, func() { r.fire(entityID, gen) }),
	}
	metrics.PendingResets.Set(float64(len(r.pending)))
}

// fire runs the callback unless the entry was replaced or cancelled after the
// timer had already started. The callback runs under the lock, so an Arm for
// the same entity lands after the reset, never before it.
func (r *ResetRegistry) fire(entityID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[entityID]
	if !ok || p.gen != gen {
		return
	}
	delete(r.pending, entityID)
	metrics.PendingResets.Set(float64(len(r.pending)))

	if r.onFire != nil {
		r.onFire(entityID)
	}
}

func (r *ResetRegistry) HasPending(entityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[entityID]
	return ok
}

func (r *ResetRegistry) CountPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// FireAt returns when the pending reset for entityID is due.
func (r *ResetRegistry) FireAt(entityID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[entityID]
	if !ok {
		return time.Time{}, false
	}
	return p.fireAt, true
}

// CancelAll stops every timer and empties the registry.
func (r *ResetRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, id)
	}
	metrics.PendingResets.Set(0)
}

func (r *ResetRegistry) Timeout() time.Duration { return r.timeout }

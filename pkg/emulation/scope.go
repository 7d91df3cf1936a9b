package emulation

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ScopeRegistry hands out exclusive ownership of per-interface emulation
// state. Trials that target the same interface serialize on Acquire; trials
// on distinct interfaces proceed concurrently. This is what makes a bounded
// worker pool sound: no two trials can mutate one interface's qdisc tree or
// race on the host scheme selection while holding scopes for the same
// interface.
type ScopeRegistry struct {
	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScopeRegistry returns an empty ScopeRegistry.
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{locks: map[string]*sync.Mutex{}}
}

// Acquire blocks until the interface is free and returns a Scope owning it.
func (r *ScopeRegistry) Acquire(iface string) *Scope {
	r.mutex.Lock()
	lock, ok := r.locks[iface]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[iface] = lock
	}
	r.mutex.Unlock()

	lock.Lock()
	logrus.Debug("Acquired emulation scope for ", iface)

	return &Scope{iface: iface, lock: lock}
}

// Scope represents exclusive ownership of an interface's emulation state for
// the duration of one trial.
type Scope struct {
	iface   string
	lock    *sync.Mutex
	release sync.Once
}

// Interface returns the owned interface name.
func (s *Scope) Interface() string {
	return s.iface
}

// Release gives up ownership. It is idempotent and must run on every exit
// path of a trial.
func (s *Scope) Release() {
	s.release.Do(func() {
		logrus.Debug("Released emulation scope for ", s.iface)
		s.lock.Unlock()
	})
}

package submit

import "sync"

// AccountRegistry serializes submission across configurations that share an
// account. An account's sequence counter is exclusive to one task at a time;
// concurrent submission from the same account is a correctness violation,
// not a performance concern.
type AccountRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{locks: make(map[string]*sync.Mutex)}
}

// Acquire takes the account's lock and returns its release function.
func (r *AccountRegistry) Acquire(accountID string) (release func()) {
	r.mu.Lock()
	lock, ok := r.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[accountID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

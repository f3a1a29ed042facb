package application

import "sync"

// LockSet serializes step execution per provisioning target. Concurrent
// requests for the same (host, username, applicationName) triple would
// otherwise interleave remote commands on one host with no coordination.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockSet creates an empty lock set
func NewLockSet() *LockSet {
	return &LockSet{locks: map[string]*sync.Mutex{}}
}

// Acquire locks the mutex for the given triple, creating it on first use.
// The returned function releases the lock.
func (ls *LockSet) Acquire(host, username, applicationName string) func() {
	key := host + "\x00" + username + "\x00" + applicationName

	ls.mu.Lock()
	lock, ok := ls.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		ls.locks[key] = lock
	}
	ls.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

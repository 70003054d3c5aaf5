package agent

import "sync"

// userLocks serializes chat turns per user. Concurrent turns for one user
// would race on the memory view and the tool loop; turns for different users
// proceed in parallel.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[int64]*sync.Mutex{}}
}

func (l *userLocks) forUser(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[userID]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[userID] = m
	return m
}

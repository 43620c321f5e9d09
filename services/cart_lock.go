package services

import "sync"

// CartLocks serialises load-modify-save of one cart key. The API, the bot and
// checkout share a single instance so a user's cart has one writer at a time.
// Entries are dropped once nobody holds or waits on them. The zero value is ready to use.
type CartLocks struct {
	mu    sync.Mutex
	locks map[string]*cartLock
}

type cartLock struct {
	mu   sync.Mutex
	refs int
}

func NewCartLocks() *CartLocks {
	return &CartLocks{locks: make(map[string]*cartLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *CartLocks) Lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*cartLock)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &cartLock{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len is the number of keys currently held or waited on.
func (l *CartLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

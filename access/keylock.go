package access

import (
	"context"
	"sync"
)

// keyLock is a set of mutexes keyed by string. Entries are removed once no
// goroutine holds or waits for them.
type keyLock struct {
	mx    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for key, blocking until it's available or ctx is
// done. On success, the returned function must be called to release it.
func (kl *keyLock) Lock(ctx context.Context, key string) (unlock func(), err error) {
	kl.mx.Lock()
	e, ok := kl.locks[key]
	if !ok {
		e = &keyLockEntry{ch: make(chan struct{}, 1)}
		kl.locks[key] = e
	}
	e.refs++
	kl.mx.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		kl.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			kl.release(key, e)
		})
	}, nil
}

func (kl *keyLock) release(key string, e *keyLockEntry) {
	kl.mx.Lock()
	defer kl.mx.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(kl.locks, key)
	}
}

// len returns the number of keys currently held or waited on.
func (kl *keyLock) len() int {
	kl.mx.Lock()
	defer kl.mx.Unlock()
	return len(kl.locks)
}

package usecase

import "sync"

// roomLocks serializes mutating operations per room id. The room record is
// the unit of mutual exclusion: two operations on the same room never
// interleave, while different rooms proceed in parallel. Entries are
// refcounted so the registry does not grow with every room ever touched.
type roomLocks struct {
	mu      sync.Mutex
	entries map[string]*roomLockEntry
}

type roomLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{
		entries: make(map[string]*roomLockEntry),
	}
}

// Lock blocks until the caller holds the room's lock and returns the unlock
// function. Callers must release on every path.
func (rl *roomLocks) Lock(roomID string) func() {
	rl.mu.Lock()
	entry, ok := rl.entries[roomID]
	if !ok {
		entry = &roomLockEntry{}
		rl.entries[roomID] = entry
	}
	entry.refs++
	rl.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		rl.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(rl.entries, roomID)
		}
		rl.mu.Unlock()
	}
}

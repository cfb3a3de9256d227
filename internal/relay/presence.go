package relay

import "sync"

// Presence maps an online user to the connection that currently
// represents them. At most one connection per user: a reconnect
// (e.g. a tab refresh) displaces the previous entry.
type Presence struct {
	mu      sync.RWMutex
	entries map[int]string
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[int]string)}
}

// Register records connId as the live connection for userId,
// overwriting any earlier entry for the same user. It reports whether
// the user was not already online.
func (p *Presence) Register(userId int, connId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, online := p.entries[userId]
	p.entries[userId] = connId

	return !online
}

// Unregister removes the entry owned by connId and reports whether an
// entry was removed. A connection that was displaced by a reconnect no
// longer owns an entry, so its removal is a no-op and never evicts the
// newer connection. The scan is by value: entries are keyed by user,
// not by connection.
func (p *Presence) Unregister(connId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for userId, id := range p.entries {
		if id == connId {
			delete(p.entries, userId)
			return true
		}
	}

	return false
}

// Lookup returns the connection currently associated with userId.
func (p *Presence) Lookup(userId int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	connId, ok := p.entries[userId]
	return connId, ok
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}

package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"gmessagerie/domain"
)

// Presence tracks how many open connections each user currently holds.
// A user is online iff their count is at least one. The set is
// process-local and rebuilt empty on restart.
type Presence struct {
	mu    sync.RWMutex
	conns map[domain.UserID]int
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[domain.UserID]int)}
}

// MarkOnline records one more open connection for the user and reports
// whether it is their first, so the caller can suppress duplicate
// online notifications for additional devices.
func (p *Presence) MarkOnline(id domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns[id]++
	return p.conns[id] == 1
}

// MarkOffline records one closed connection. It reports the offline
// timestamp and whether the user's last connection just closed; only
// then does the user actually leave the presence set.
func (p *Presence) MarkOffline(id domain.UserID) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	count, ok := p.conns[id]
	if !ok {
		return now, false
	}
	if count <= 1 {
		delete(p.conns, id)
		return now, true
	}
	p.conns[id] = count - 1
	return now, false
}

func (p *Presence) IsOnline(id domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.conns[id] > 0
}

// Snapshot returns the current set of online user ids, sorted for
// deterministic payloads.
func (p *Presence) Snapshot() []domain.UserID {
	p.mu.RLock()
	ids := lo.Keys(p.conns)
	p.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

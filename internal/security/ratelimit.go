package security

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Two-tier sliding window. A key starts on the normal tier; each rejected
// request counts as an escalation hit, and once a key collects
// escalationAfter hits it moves to the long window for the rest of the
// process lifetime. Escalation never reverts.
const (
	normalWindow    = 4000 * time.Millisecond
	escalatedWindow = 25000 * time.Millisecond
	windowMax       = 5
	escalationAfter = 3

	// bounds for the entry table; idle keys fall out instead of
	// accumulating for the life of the process
	tableSize = 8192
	tableTTL  = 30 * time.Minute
)

type limitEntry struct {
	count       int
	windowStart time.Time
	escalations int
}

// Admission gates /api traffic with a per-client sliding window.
// Entries live in a bounded expirable cache; the mutex covers the whole
// read-modify-write so concurrent requests from one key cannot interleave.
type Admission struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *limitEntry]
	now     func() time.Time
}

func NewAdmission() *Admission {
	return &Admission{
		entries: expirable.NewLRU[string, *limitEntry](tableSize, nil, tableTTL),
		now:     time.Now,
	}
}

// Allow admits or rejects one request for the given client key. On
// rejection retryAfter holds whole seconds (rounded up) until the current
// window closes.
func (a *Admission) Allow(key string) (ok bool, retryAfter int) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	e, found := a.entries.Get(key)
	if !found {
		a.entries.Add(key, &limitEntry{count: 1, windowStart: now})
		return true, 0
	}

	window := normalWindow
	if e.escalations >= escalationAfter {
		window = escalatedWindow
	}

	elapsed := now.Sub(e.windowStart)
	if elapsed >= window {
		// window closed; tier is re-evaluated on the next call
		e.count = 1
		e.windowStart = now
		return true, 0
	}

	e.count++
	if e.count > windowMax {
		e.escalations++
		return false, ceilSeconds(window - elapsed)
	}
	return true, 0
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// ClientIPFromRequest derives the admission key without gin: forwarded
// address first, then the peer address, then the unknown sentinel.
func ClientIPFromRequest(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return "unknown"
}

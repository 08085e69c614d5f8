package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultTicketTTL is how long a WebSocket ticket stays valid.
const DefaultTicketTTL = 60 * time.Second

const ticketBytes = 32

// TicketStore issues single-use tickets that let an authenticated caller
// open a WebSocket without putting its token in the URL.
type TicketStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	claims    *Claims
	expiresAt time.Time
}

// NewTicketStore creates a store. A zero ttl uses DefaultTicketTTL.
func NewTicketStore(ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketStore{ttl: ttl, now: time.Now, tickets: make(map[string]ticketEntry)}
}

// TTL returns the ticket lifetime.
func (s *TicketStore) TTL() time.Duration { return s.ttl }

// Issue creates a ticket carrying claims.
func (s *TicketStore) Issue(claims *Claims) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	ticket := hex.EncodeToString(b)

	s.mu.Lock()
	s.tickets[ticket] = ticketEntry{claims: claims, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return ticket, nil
}

// Redeem consumes a ticket and returns the claims it was issued for.
func (s *TicketStore) Redeem(ticket string) (*Claims, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tickets[ticket]
	if !ok {
		return nil, false
	}
	delete(s.tickets, ticket)
	if !s.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.claims, true
}

// Sweep drops expired tickets and returns how many were removed.
func (s *TicketStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for ticket, entry := range s.tickets {
		if !now.Before(entry.expiresAt) {
			delete(s.tickets, ticket)
			n++
		}
	}
	return n
}

// Run sweeps expired tickets every TTL until ctx is done.
func (s *TicketStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

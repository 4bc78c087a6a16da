// Package buffer implements the gateway's fixed-capacity circular log of
// sensor readings. The buffer deliberately overwrites its oldest entry when
// full: bounded memory wins over perfect retention, and eviction is silent.
package buffer

import (
	"strings"
	"time"

	"github.com/eddielth/sensor-gateway/gateway"
)

const (
	// DefaultCapacity is the number of readings retained in memory
	DefaultCapacity = 100
	// registryCapacity bounds the distinct-sender registry
	registryCapacity = 20
)

type entry struct {
	reading gateway.Reading
	synced  bool
}

// Store is the ring buffer plus the bounded registry of distinct sender
// identities. It must only be touched from the orchestrator tick.
type Store struct {
	entries    []entry
	write      int
	count      int
	gatewayID  string
	namePrefix string
	senders    []string

	now func() time.Time
}

// New creates a store with the given capacity. The gateway's own identifier
// and anything sharing its name prefix are never counted as senders.
func New(capacity int, gatewayID, namePrefix string) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:    make([]entry, capacity),
		gatewayID:  gatewayID,
		namePrefix: namePrefix,
		senders:    make([]string, 0, registryCapacity),
		now:        time.Now,
	}
}

// Insert writes the reading at the current cursor, marking it unsynced, and
// returns the slot index as the entry's handle. At capacity the oldest entry
// is overwritten unconditionally.
func (s *Store) Insert(r gateway.Reading) int {
	index := s.write
	s.entries[index] = entry{reading: r, synced: false}
	s.write = (s.write + 1) % len(s.entries)
	if s.count < len(s.entries) {
		s.count++
	}
	s.trackSender(r.NodeID)
	return index
}

// Latest returns the most recently written reading
func (s *Store) Latest() (gateway.Reading, bool) {
	if s.count == 0 {
		return gateway.Reading{}, false
	}
	latest := s.write - 1
	if latest < 0 {
		latest = len(s.entries) - 1
	}
	return s.entries[latest].reading, true
}

// NextUnsynced scans from the oldest surviving entry toward the newest and
// returns the first unsynced reading with its slot index. Replay is therefore
// always oldest-first.
func (s *Store) NextUnsynced() (gateway.Reading, int, bool) {
	if s.count == 0 {
		return gateway.Reading{}, 0, false
	}
	oldest := (s.write - s.count + len(s.entries)) % len(s.entries)
	for i := 0; i < s.count; i++ {
		idx := (oldest + i) % len(s.entries)
		if !s.entries[idx].synced {
			return s.entries[idx].reading, idx, true
		}
	}
	return gateway.Reading{}, 0, false
}

// MarkSynced flips the synced flag for a slot. Idempotent; out-of-range
// indices are ignored.
func (s *Store) MarkSynced(index int) {
	if index < 0 || index >= len(s.entries) {
		return
	}
	s.entries[index].synced = true
}

// Count returns the number of surviving entries
func (s *Store) Count() int {
	return s.count
}

// Full reports whether the next insert will overwrite the oldest entry
func (s *Store) Full() bool {
	return s.count >= len(s.entries)
}

// Capacity returns the fixed slot count
func (s *Store) Capacity() int {
	return len(s.entries)
}

// SenderCount returns the number of distinct non-gateway senders seen
func (s *Store) SenderCount() int {
	return len(s.senders)
}

// ActiveSenderCount returns the number of distinct non-gateway senders with
// at least one surviving reading captured within the window ending now.
func (s *Store) ActiveSenderCount(window time.Duration) int {
	if s.count == 0 {
		return 0
	}
	cutoff := s.now().Add(-window)

	active := make([]string, 0, registryCapacity)
	oldest := (s.write - s.count + len(s.entries)) % len(s.entries)
	for i := 0; i < s.count; i++ {
		e := &s.entries[(oldest+i)%len(s.entries)]
		if s.isGatewaySender(e.reading.NodeID) {
			continue
		}
		if e.reading.CapturedAt.Before(cutoff) {
			continue
		}
		seen := false
		for _, id := range active {
			if id == e.reading.NodeID {
				seen = true
				break
			}
		}
		if !seen && len(active) < registryCapacity {
			active = append(active, e.reading.NodeID)
		}
	}
	return len(active)
}

// ClearGatewaySenders drops any registry entry matching the gateway identity.
// Inserts already filter these out; this covers registries populated before
// the gateway learned its own identifier.
func (s *Store) ClearGatewaySenders() {
	kept := s.senders[:0]
	for _, id := range s.senders {
		if !s.isGatewaySender(id) {
			kept = append(kept, id)
		}
	}
	s.senders = kept
}

func (s *Store) trackSender(id string) {
	if s.isGatewaySender(id) {
		return
	}
	for _, known := range s.senders {
		if known == id {
			return
		}
	}
	if len(s.senders) < registryCapacity {
		s.senders = append(s.senders, id)
	}
}

func (s *Store) isGatewaySender(id string) bool {
	if id == s.gatewayID {
		return true
	}
	return s.namePrefix != "" && strings.HasPrefix(id, s.namePrefix)
}

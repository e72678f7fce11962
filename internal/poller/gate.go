package poller

import "sync"

// gate applies results in issuance order. A result is applied only if its
// sequence is not older than the last one applied to the same entity, so a
// slow early request can never overwrite data from a later one.
type gate struct {
	mu      sync.Mutex
	applied map[string]uint64
}

func newGate() *gate {
	return &gate{applied: make(map[string]uint64)}
}

// admit runs apply under the gate lock if seq is current for entity
func (g *gate) admit(entity string, seq uint64, apply func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if seq < g.applied[entity] {
		return false
	}
	g.applied[entity] = seq
	apply()
	return true
}

package poller

import "testing"

func TestGateAdmit(t *testing.T) {
	g := newGate()
	var applied []uint64
	apply := func(seq uint64) func() {
		return func() { applied = append(applied, seq) }
	}

	if !g.admit("metrics", 2, apply(2)) {
		t.Fatal("expected first result to apply")
	}
	if g.admit("metrics", 1, apply(1)) {
		t.Error("expected older result to be discarded")
	}
	if !g.admit("metrics", 2, apply(2)) {
		t.Error("expected equal sequence to apply")
	}
	if !g.admit("agents", 1, apply(1)) {
		t.Error("expected entities to be tracked independently")
	}
	if len(applied) != 3 {
		t.Errorf("expected 3 applications, got %v", applied)
	}
}

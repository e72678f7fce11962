package backend

import (
	"math"
	"testing"
)

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"float", 0.5, 0.5},
		{"int", 3, 3},
		{"numeric string", " 2.25 ", 2.25},
		{"garbage string", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"object", map[string]interface{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceFloat(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSnapshotFromRecordFallbackNames(t *testing.T) {
	s := SnapshotFromRecord(map[string]interface{}{
		"batch_id": 7.0,
		"csat":     0.6,
		"gini":     0.4,
	})
	if s.BatchID != 7 || s.CSAT != 0.6 || s.Gini != 0.4 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

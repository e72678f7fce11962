package backend

import (
	"math"
	"strconv"
	"strings"

	"github.com/dennisdiepolder/monti/console/internal/types"
)

// SnapshotFromRecord converts one loosely typed historical record into a snapshot.
// Historical rows use avg_csat/avg_aht/gini_coefficient; current-metric names are
// accepted as fallbacks. Missing or non-numeric fields become 0.
func SnapshotFromRecord(rec map[string]interface{}) types.MetricsSnapshot {
	return types.MetricsSnapshot{
		BatchID:          int(numberField(rec, "batch_id")),
		CSAT:             numberField(rec, "avg_csat", "csat"),
		AHT:              numberField(rec, "avg_aht", "aht"),
		SLAMetRate:       numberField(rec, "sla_met_rate"),
		Gini:             numberField(rec, "gini_coefficient", "gini"),
		Throughput:       int(numberField(rec, "throughput")),
		TotalAssignments: int(numberField(rec, "total_assignments")),
	}
}

func numberField(rec map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return CoerceFloat(v)
		}
	}
	return 0
}

// CoerceFloat converts a decoded JSON value to a finite float, or 0 if it is not numeric
func CoerceFloat(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

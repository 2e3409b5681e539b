package pipeline

import (
	"testing"
	"time"
)

func TestPerformanceTrackerRecordAndSnapshot(t *testing.T) {
	tr := NewPerformanceTracker()
	tr.Record(StageTiming{StageID: "loader", StageName: "Loader", Duration: 10 * time.Millisecond, RecordsIn: 0, RecordsOut: 100})
	tr.Record(StageTiming{StageID: "filter", StageName: "Filter", Duration: 5 * time.Millisecond, RecordsIn: 100, RecordsOut: 80, Warnings: []string{"dropped 20"}})

	timings, total := tr.Snapshot()
	if len(timings) != 2 {
		t.Fatalf("expected 2 recorded timings, got %d", len(timings))
	}
	if total != 15*time.Millisecond {
		t.Fatalf("expected total duration 15ms, got %s", total)
	}
	if timings[1].Warnings[0] != "dropped 20" {
		t.Fatalf("expected warning preserved, got %v", timings[1].Warnings)
	}
}

func TestPerformanceTrackerSnapshotIsACopy(t *testing.T) {
	tr := NewPerformanceTracker()
	tr.Record(StageTiming{StageID: "loader", Duration: time.Second})

	timings, _ := tr.Snapshot()
	timings[0].StageID = "mutated"

	fresh, _ := tr.Snapshot()
	if fresh[0].StageID != "loader" {
		t.Fatalf("expected Snapshot to return a defensive copy, internal state leaked: %q", fresh[0].StageID)
	}
}

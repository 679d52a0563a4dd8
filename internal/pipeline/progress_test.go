package pipeline

import (
	"errors"
	"testing"
)

func TestProgressTracker_Monotonic(t *testing.T) {
	var got []Progress
	tracker := newProgressTracker(func(p Progress) { got = append(got, p) })

	tracker.emit(PhaseDecoding, 0, -1, 0)
	tracker.emit(PhaseEncoding, 40, 1, 4)
	tracker.emit(PhaseTransmitting, 30, 0, 4)
	tracker.emit(PhaseTransmitting, 150, 3, 4)

	want := []float64{0, 40, 40, 100}
	if len(got) != len(want) {
		t.Fatalf("got %d snapshots, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Percent != want[i] {
			t.Errorf("snapshot %d percent = %v, want %v", i, got[i].Percent, want[i])
		}
	}
	if got[2].Phase != PhaseTransmitting || got[2].CurrentChunkIndex != 0 {
		t.Errorf("snapshot 2 = %+v", got[2])
	}
}

func TestProgressTracker_Fail(t *testing.T) {
	var last Progress
	tracker := newProgressTracker(func(p Progress) { last = p })

	tracker.emit(PhaseTransmitting, 55, 2, 4)
	tracker.fail(chunkError(PhaseTransmitting, 3, errors.New("upstream down")))

	if last.Phase != PhaseFailed || last.FailedPhase != PhaseTransmitting {
		t.Errorf("phase = %s/%s", last.Phase, last.FailedPhase)
	}
	if last.CurrentChunkIndex != 3 {
		t.Errorf("CurrentChunkIndex = %d, want 3", last.CurrentChunkIndex)
	}
	if last.Percent != 55 {
		t.Errorf("Percent = %v, want 55", last.Percent)
	}
	if last.Error == "" {
		t.Error("expected error message")
	}
	if !last.Phase.Terminal() {
		t.Error("failed phase should be terminal")
	}
}

func TestProgressTracker_NilObserver(t *testing.T) {
	tracker := newProgressTracker(nil)
	tracker.emit(PhasePlanning, 5, -1, 0)
	if s := tracker.snapshot(); s.Phase != PhasePlanning {
		t.Errorf("snapshot phase = %s", s.Phase)
	}
}

func TestChunkPercent(t *testing.T) {
	if got := chunkPercent(30, 99, 0, 3); got != 30 {
		t.Errorf("chunkPercent(start) = %v", got)
	}
	if got := chunkPercent(30, 99, 3, 3); got != 99 {
		t.Errorf("chunkPercent(end) = %v", got)
	}
	if got := chunkPercent(30, 99, 0, 0); got != 99 {
		t.Errorf("chunkPercent(no chunks) = %v", got)
	}
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("cause")
	err := chunkError(PhaseEncoding, 2, cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is failed through PipelineError")
	}
	if err.Error() != "pipeline failed during encoding (chunk 2): cause" {
		t.Errorf("Error() = %q", err.Error())
	}
	if phaseError(PhasePlanning, cause).Error() != "pipeline failed during planning: cause" {
		t.Error("unexpected phase error message")
	}
}

package recognize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/database/mock"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/ledger"
)

// stubEngine returns canned detections.
type stubEngine struct {
	detections []engine.Detection
	err        error
	calls      int
}

func (s *stubEngine) DetectFaces(ctx context.Context, imageData []byte) ([]engine.Detection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.detections, nil
}

func testConfig() config.RecognitionConfig {
	return config.RecognitionConfig{
		Threshold:       0.58,
		Alpha:           0.05,
		MinBoxSize:      80,
		FrameStride:     1,
		DebounceSeconds: 10,
		EmbeddingDim:    3,
	}
}

// setup builds a processor with one enrolled student and an open session.
func setup(t *testing.T, eng *stubEngine, cfg config.RecognitionConfig) (*Processor, *mock.Store, database.Identity, int64) {
	t.Helper()
	ctx := context.Background()
	store := mock.NewStore()

	teacherID, err := store.CreateTeacher(ctx, "novak", "secret", "Jan Novák")
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}
	courseID, err := store.CreateCourse(ctx, teacherID, "Algorithms", "ALG-101")
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	studentID, err := store.UpsertStudent(ctx, "Alice", "S1")
	if err != nil {
		t.Fatalf("UpsertStudent failed: %v", err)
	}
	identity := database.Identity{
		PersonType:  database.PersonStudent,
		PersonID:    studentID,
		DisplayName: "Alice",
		Code:        "S1",
	}

	index := faceindex.New(3)
	if err := index.Add([]float32{1, 0, 0}, identity); err != nil {
		t.Fatalf("index.Add failed: %v", err)
	}

	l := ledger.New(store)
	sessionID, err := l.StartSession(ctx, courseID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	return New(eng, index, l, cfg, sessionID), store, identity, sessionID
}

func bigBox() engine.BBox {
	return engine.BBox{X1: 100, Y1: 100, X2: 250, Y2: 260}
}

func TestProcessFrameRecordsMatch(t *testing.T) {
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: bigBox(), Score: 0.95, Embedding: []float32{0.99, 0.14, 0}},
	}}
	p, store, identity, sessionID := setup(t, eng, testConfig())

	result, err := p.ProcessFrame(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if result.Skipped {
		t.Fatal("frame unexpectedly skipped")
	}
	if len(result.Sightings) != 1 {
		t.Fatalf("got %d sightings, want 1", len(result.Sightings))
	}
	s := result.Sightings[0]
	if s.Identity == nil || s.Identity.PersonID != identity.PersonID {
		t.Errorf("sighting identity = %+v, want %+v", s.Identity, identity)
	}
	if !s.Recorded {
		t.Error("sighting not recorded")
	}

	rows, err := store.ExportSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d attendance rows, want 1", len(rows))
	}
}

func TestProcessFrameBelowThreshold(t *testing.T) {
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: bigBox(), Score: 0.95, Embedding: []float32{0, 0, 1}},
	}}
	p, store, _, sessionID := setup(t, eng, testConfig())

	result, err := p.ProcessFrame(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if len(result.Sightings) != 1 {
		t.Fatalf("got %d sightings, want 1", len(result.Sightings))
	}
	if result.Sightings[0].Identity != nil {
		t.Error("orthogonal embedding matched")
	}

	rows, err := store.ExportSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ExportSession failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d attendance rows, want 0", len(rows))
	}
}

func TestProcessFrameFiltersSmallBoxes(t *testing.T) {
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: engine.BBox{X1: 10, Y1: 10, X2: 50, Y2: 60}, Score: 0.9, Embedding: []float32{1, 0, 0}},
	}}
	p, _, _, _ := setup(t, eng, testConfig())

	result, err := p.ProcessFrame(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if result.Faces != 1 {
		t.Errorf("Faces = %d, want 1", result.Faces)
	}
	if len(result.Sightings) != 0 {
		t.Errorf("got %d sightings for undersized box, want 0", len(result.Sightings))
	}
}

func TestProcessFrameDebounce(t *testing.T) {
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: bigBox(), Score: 0.95, Embedding: []float32{1, 0, 0}},
	}}
	p, store, _, sessionID := setup(t, eng, testConfig())

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := base
	p.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := p.ProcessFrame(ctx, []byte("frame")); err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
		clock = clock.Add(time.Second)
	}

	events, err := store.ListEvents(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events within debounce window, want 1", len(events))
	}

	// Past the window the same identity records again.
	clock = base.Add(11 * time.Second)
	if _, err := p.ProcessFrame(ctx, []byte("frame")); err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	events, err = store.ListEvents(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events after window, want 2", len(events))
	}
}

func TestProcessFrameStride(t *testing.T) {
	eng := &stubEngine{}
	cfg := testConfig()
	cfg.FrameStride = 3
	p, _, _, _ := setup(t, eng, cfg)

	ctx := context.Background()
	processed := 0
	for i := 0; i < 9; i++ {
		result, err := p.ProcessFrame(ctx, []byte("frame"))
		if err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
		if !result.Skipped {
			processed++
		}
	}
	if processed != 3 {
		t.Errorf("processed %d of 9 frames with stride 3, want 3", processed)
	}
	if eng.calls != 3 {
		t.Errorf("engine called %d times, want 3", eng.calls)
	}
}

func TestProcessFrameAdaptsTemplate(t *testing.T) {
	obs := []float32{0.95, 0.31225, 0}
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: bigBox(), Score: 0.95, Embedding: obs},
	}}
	p, _, identity, _ := setup(t, eng, testConfig())

	before, _, err := p.index.Match(obs, 0)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if before == nil {
		t.Fatal("expected a match before adaptation")
	}
	_, scoreBefore, _ := p.index.Match(obs, 0)

	if _, err := p.ProcessFrame(context.Background(), []byte("frame")); err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	matched, scoreAfter, err := p.index.Match(obs, 0)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if matched == nil || matched.PersonID != identity.PersonID {
		t.Fatalf("adaptation changed the matched identity: %+v", matched)
	}
	if scoreAfter <= scoreBefore {
		t.Errorf("score after adaptation %v not above %v", scoreAfter, scoreBefore)
	}
}

func TestProcessFrameEngineError(t *testing.T) {
	eng := &stubEngine{err: errors.New("sidecar down")}
	p, _, _, _ := setup(t, eng, testConfig())

	if _, err := p.ProcessFrame(context.Background(), []byte("frame")); err == nil {
		t.Error("expected error when engine fails")
	}
}

func TestOnMatchCallback(t *testing.T) {
	eng := &stubEngine{detections: []engine.Detection{
		{BBox: bigBox(), Score: 0.95, Embedding: []float32{1, 0, 0}},
	}}
	p, _, identity, _ := setup(t, eng, testConfig())

	var got []Sighting
	p.OnMatch(func(s Sighting) { got = append(got, s) })

	ctx := context.Background()
	// Second frame is debounced and must not fire the callback.
	for i := 0; i < 2; i++ {
		if _, err := p.ProcessFrame(ctx, []byte("frame")); err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
	}

	if len(got) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(got))
	}
	if got[0].Identity == nil || got[0].Identity.PersonID != identity.PersonID {
		t.Errorf("callback identity = %+v, want %+v", got[0].Identity, identity)
	}
}

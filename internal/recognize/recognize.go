// Package recognize runs the live recognition loop: frames come in from a
// camera, detected faces are matched against the index and matches are
// recorded in the attendance ledger.
package recognize

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/ledger"
)

// Sighting is the outcome for one detected face in a frame.
type Sighting struct {
	BBox     engine.BBox        `json:"bbox"`
	Score    float64            `json:"score"`
	Identity *database.Identity `json:"identity,omitempty"`
	Recorded bool               `json:"recorded"`
}

// FrameResult summarizes the processing of one frame.
type FrameResult struct {
	Skipped   bool       `json:"skipped"` // frame dropped by stride
	Faces     int        `json:"faces"`   // faces detected before filtering
	Sightings []Sighting `json:"sightings"`
}

// Processor drives recognition for one open session.
type Processor struct {
	engine engine.Engine
	index  *faceindex.Index
	ledger *ledger.Ledger
	cfg    config.RecognitionConfig

	// onMatch, when set, fires for every recorded sighting.
	onMatch func(Sighting)

	mu         sync.Mutex
	sessionID  int64
	frameCount int
	lastSeen   map[database.IdentityKey]time.Time

	now func() time.Time
}

// New creates a processor bound to one session.
func New(eng engine.Engine, index *faceindex.Index, l *ledger.Ledger, cfg config.RecognitionConfig, sessionID int64) *Processor {
	return &Processor{
		engine:    eng,
		index:     index,
		ledger:    l,
		cfg:       cfg,
		sessionID: sessionID,
		lastSeen:  make(map[database.IdentityKey]time.Time),
		now:       time.Now,
	}
}

// OnMatch registers a callback invoked for every recorded sighting.
// Must be called before the first frame is processed.
func (p *Processor) OnMatch(fn func(Sighting)) {
	p.onMatch = fn
}

// ProcessFrame runs detection and matching on one camera frame. Frames
// dropped by the stride setting return a result with Skipped set and no
// detection work done.
func (p *Processor) ProcessFrame(ctx context.Context, frame []byte) (*FrameResult, error) {
	if !p.takeFrame() {
		return &FrameResult{Skipped: true}, nil
	}

	detections, err := p.engine.DetectFaces(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	result := &FrameResult{Faces: len(detections)}
	ts := p.now()

	for _, det := range detections {
		if det.BBox.MinSide() < float64(p.cfg.MinBoxSize) {
			continue
		}

		identity, score, err := p.index.Match(det.Embedding, p.cfg.Threshold)
		if err != nil {
			return nil, fmt.Errorf("match failed: %w", err)
		}

		sighting := Sighting{BBox: det.BBox, Score: score, Identity: identity}
		if identity != nil {
			recorded, err := p.record(ctx, *identity, det.Embedding, ts)
			if err != nil {
				return nil, err
			}
			sighting.Recorded = recorded
			if recorded && p.onMatch != nil {
				p.onMatch(sighting)
			}
		}
		result.Sightings = append(result.Sightings, sighting)
	}

	return result, nil
}

// takeFrame advances the frame counter and reports whether this frame
// should be processed under the stride setting.
func (p *Processor) takeFrame() bool {
	stride := p.cfg.FrameStride
	if stride < 1 {
		stride = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.frameCount
	p.frameCount++
	return n%stride == 0
}

// record writes the sighting to the ledger and adapts the stored template,
// unless the identity was already seen within the debounce window.
func (p *Processor) record(ctx context.Context, identity database.Identity, emb []float32, ts time.Time) (bool, error) {
	if !p.debounce(identity.Key(), ts) {
		return false, nil
	}

	if err := p.ledger.RecordEvent(ctx, p.sessionID, identity, ts); err != nil {
		return false, fmt.Errorf("failed to record sighting: %w", err)
	}

	if p.cfg.Alpha > 0 {
		if _, err := p.index.Update(identity.PersonType, identity.PersonID, emb, p.cfg.Alpha); err != nil {
			// Adaptation is best effort, the sighting is already recorded.
			log.Printf("template update for %s/%d failed: %v", identity.PersonType, identity.PersonID, err)
		}
	}
	return true, nil
}

// debounce reports whether the identity is past its suppression window and
// marks it as seen.
func (p *Processor) debounce(key database.IdentityKey, ts time.Time) bool {
	window := time.Duration(p.cfg.DebounceSeconds) * time.Second
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastSeen[key]; ok && ts.Sub(last) < window {
		return false
	}
	p.lastSeen[key] = ts
	return true
}

// Package faceindex provides exhaustive nearest-identity matching over
// enrolled face embeddings. All stored vectors are unit length, so cosine
// similarity reduces to a dot product.
package faceindex

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/kozaktomas/roll-call/internal/database"
)

// NoMatchScore is reported when the index is empty.
const NoMatchScore = -1.0

// normEps keeps normalization defined for near-zero vectors.
const normEps = 1e-9

// Catalog is the source an index rebuilds from.
type Catalog interface {
	LoadAllFaces(ctx context.Context) ([]database.IndexedFace, error)
}

type entry struct {
	vec      []float32
	identity database.Identity
}

// Index performs exhaustive nearest-identity search using cosine similarity.
// Thread-safe. Matching is O(N·D) per query; suitable for classroom-scale
// enrollment (low hundreds of embeddings). Entries keep insertion order,
// which only matters for tie-breaking: equal best scores resolve to the
// lowest stored position.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
	byKey   map[database.IdentityKey][]int // identity -> entry positions
}

// New creates an empty index for embeddings of the given dimension.
func New(dim int) *Index {
	return &Index{
		dim:   dim,
		byKey: make(map[database.IdentityKey][]int),
	}
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum) + normEps
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Add normalizes the embedding and appends it with its identity. Multiple
// embeddings per identity are expected and valid (several enrollment shots);
// no dedup check is performed.
func (ix *Index) Add(vec []float32, identity database.Identity) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("add embedding for %s/%d: got %d values, want %d: %w",
			identity.PersonType, identity.PersonID, len(vec), ix.dim, database.ErrDimensionMismatch)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.append(Normalize(vec), identity)
	return nil
}

// append assumes vec is already normalized and the lock is held.
func (ix *Index) append(vec []float32, identity database.Identity) {
	key := identity.Key()
	ix.byKey[key] = append(ix.byKey[key], len(ix.entries))
	ix.entries = append(ix.entries, entry{vec: vec, identity: identity})
}

// Rebuild clears the index and reloads every stored embedding from the
// catalog. Rows whose dimension does not match the configured one are
// skipped; the skipped count is returned so callers can report them.
// An empty catalog yields a valid empty index.
func (ix *Index) Rebuild(ctx context.Context, catalog Catalog) (skipped int, err error) {
	faces, err := catalog.LoadAllFaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("load faces: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = ix.entries[:0]
	ix.byKey = make(map[database.IdentityKey][]int, len(faces))

	for _, f := range faces {
		if len(f.Embedding) != ix.dim {
			skipped++
			continue
		}
		ix.append(Normalize(f.Embedding), f.Identity)
	}
	return skipped, nil
}

// Update blends the first stored embedding of the identity with a new
// observation: normalize((1-alpha)*old + alpha*new). Small alpha lets the
// template drift toward recent appearance without discarding history.
// Returns false if the identity has no stored embedding; the index is left
// unchanged in that case (it never inserts on behalf of Update).
func (ix *Index) Update(personType database.PersonType, personID int64, vec []float32, alpha float64) (bool, error) {
	if len(vec) != ix.dim {
		return false, fmt.Errorf("update embedding for %s/%d: got %d values, want %d: %w",
			personType, personID, len(vec), ix.dim, database.ErrDimensionMismatch)
	}
	if alpha < 0 || alpha > 1 {
		return false, fmt.Errorf("update embedding for %s/%d: alpha %v out of [0,1]", personType, personID, alpha)
	}

	newVec := Normalize(vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	positions := ix.byKey[database.IdentityKey{PersonType: personType, PersonID: personID}]
	if len(positions) == 0 {
		return false, nil
	}

	pos := positions[0]
	old := ix.entries[pos].vec
	blended := make([]float32, ix.dim)
	for i := range blended {
		blended[i] = float32((1-alpha)*float64(old[i]) + alpha*float64(newVec[i]))
	}
	ix.entries[pos].vec = Normalize(blended)
	return true, nil
}

// Match normalizes the query and returns the best-matching identity with its
// cosine similarity, or (nil, score) when the best score is below the
// threshold. The score is reported even on a non-match to support threshold
// tuning. An empty index returns (nil, NoMatchScore).
func (ix *Index) Match(vec []float32, threshold float64) (*database.Identity, float64, error) {
	if len(vec) != ix.dim {
		return nil, 0, fmt.Errorf("match embedding: got %d values, want %d: %w",
			len(vec), ix.dim, database.ErrDimensionMismatch)
	}

	query := Normalize(vec)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, NoMatchScore, nil
	}

	best := math.Inf(-1)
	bestPos := 0
	for pos, e := range ix.entries {
		var dot float64
		for i, x := range e.vec {
			dot += float64(x) * float64(query[i])
		}
		// Strict > keeps the lowest position on ties.
		if dot > best {
			best = dot
			bestPos = pos
		}
	}

	if best < threshold {
		return nil, best, nil
	}
	identity := ix.entries[bestPos].identity
	return &identity, best, nil
}

// Len returns the number of stored embeddings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

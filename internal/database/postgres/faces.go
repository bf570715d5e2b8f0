package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/roll-call/internal/database"
)

// FaceRepository provides PostgreSQL-backed face embedding storage.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// AddFace stores one embedding for a person and returns the row ID.
func (r *FaceRepository) AddFace(ctx context.Context, face database.StoredFace) (int64, error) {
	vec := pgvector.NewVector(face.Embedding)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO faces (person_type, person_id, embedding, quality, image_path, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, face.PersonType, face.PersonID, vec, face.Quality, face.ImagePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", classify(err))
	}
	return id, nil
}

// LoadAllFaces returns every stored embedding joined with its identity.
// Face rows whose person no longer resolves are excluded by the join.
func (r *FaceRepository) LoadAllFaces(ctx context.Context) ([]database.IndexedFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.person_type, f.person_id, f.embedding,
		       COALESCE(s.full_name, t.full_name) AS full_name,
		       COALESCE(s.student_code, '') AS code
		FROM faces f
		LEFT JOIN students s ON f.person_type = 'student' AND s.id = f.person_id
		LEFT JOIN teachers t ON f.person_type = 'teacher' AND t.id = f.person_id
		WHERE s.id IS NOT NULL OR t.id IS NOT NULL
		ORDER BY f.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []database.IndexedFace
	for rows.Next() {
		var f database.IndexedFace
		var vec pgvector.Vector
		if err := rows.Scan(&f.Identity.PersonType, &f.Identity.PersonID, &vec,
			&f.Identity.DisplayName, &f.Identity.Code); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// CountFaces returns the number of stored embeddings for a person.
func (r *FaceRepository) CountFaces(ctx context.Context, personType database.PersonType, personID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM faces WHERE person_type = $1 AND person_id = $2",
		personType, personID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

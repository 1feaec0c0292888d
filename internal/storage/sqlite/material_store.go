package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
)

// MaterialStore persists course materials. It implements
// learning.MaterialSource and feeds concept extraction.
type MaterialStore struct {
	db *DB
}

// NewMaterialStore creates a new SQLite-backed material store.
func NewMaterialStore(db *DB) *MaterialStore {
	return &MaterialStore{db: db}
}

// Add stores one course material.
func (s *MaterialStore) Add(ctx context.Context, courseID, title, content, materialType string) error {
	if materialType == "" {
		materialType = "text"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (id, course_id, title, content, material_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), courseID, title, content, materialType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

// ListMaterials returns a course's materials, oldest first.
func (s *MaterialStore) ListMaterials(ctx context.Context, courseID string) ([]concept.Material, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, content
		FROM materials
		WHERE course_id = ?
		ORDER BY created_at ASC
		LIMIT 100`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	var materials []concept.Material
	for rows.Next() {
		var m concept.Material
		if err := rows.Scan(&m.Title, &m.Content); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

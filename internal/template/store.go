package template

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for templates.
type Store struct {
	db *sql.DB
}

// NewStore creates a new template store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ready reports whether the backing database is reachable.
func (s *Store) Ready(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("template store: %w", err)
	}
	return nil
}

// Create validates and persists a new template.
func (s *Store) Create(ctx context.Context, req *CreateTemplateRequest) (*Template, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}

	t := &Template{
		ID:             uuid.New(),
		Name:           req.Name,
		Category:       req.Category,
		SubjectPattern: req.SubjectPattern,
		BodyPattern:    req.BodyPattern,
		Variables:      req.Variables,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	query := `INSERT INTO mailing_templates (id, name, category, subject_pattern, body_pattern,
		variables, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Category, t.SubjectPattern,
		t.BodyPattern, t.Variables, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// Get retrieves a template by ID, including inactive ones. Deleted templates
// are not returned.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	query := `SELECT id, name, category, subject_pattern, body_pattern, variables,
		is_active, created_at, updated_at
		FROM mailing_templates WHERE id = $1 AND deleted_at IS NULL`

	t := &Template{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Category, &t.SubjectPattern, &t.BodyPattern,
		&t.Variables, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// List retrieves templates, optionally filtered by category.
func (s *Store) List(ctx context.Context, category string) ([]*Template, error) {
	query := `SELECT id, name, category, subject_pattern, body_pattern, variables,
		is_active, created_at, updated_at
		FROM mailing_templates WHERE deleted_at IS NULL`
	args := []interface{}{}
	if category != "" {
		query += " AND category = $1"
		args = append(args, category)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.SubjectPattern, &t.BodyPattern,
			&t.Variables, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Update applies a partial update and re-validates the result.
func (s *Store) Update(ctx context.Context, id uuid.UUID, req *UpdateTemplateRequest) (*Template, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.SubjectPattern != nil {
		t.SubjectPattern = *req.SubjectPattern
	}
	if req.BodyPattern != nil {
		t.BodyPattern = *req.BodyPattern
	}
	if req.Variables != nil {
		t.Variables = *req.Variables
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now()

	query := `UPDATE mailing_templates SET name = $1, category = $2, subject_pattern = $3,
		body_pattern = $4, variables = $5, is_active = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL`

	_, err = s.db.ExecContext(ctx, query, t.Name, t.Category, t.SubjectPattern,
		t.BodyPattern, t.Variables, t.IsActive, t.UpdatedAt, t.ID)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// Delete soft-deletes a template. Historical delivery log rows keep their
// denormalized template name, so reporting survives the delete.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mailing_templates SET is_active = false, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Render loads an active template and renders it against the supplied
// variable map. Unknown, inactive, and deleted templates all surface as
// ErrTemplateNotFound.
func (s *Store) Render(ctx context.Context, id uuid.UUID, vars map[string]string) (*Rendered, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTemplateNotFound
	}
	return t.Render(vars)
}

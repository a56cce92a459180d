package notes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const noteCols = `id, encounter_id, patient_name, prompt, body, model, status, error, created_at`

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO note (id, encounter_id, patient_name, prompt, body, model, status, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.EncounterID, n.PatientName, n.Prompt, n.Body, n.Model, n.Status, n.Error,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+noteCols+` FROM note WHERE id = $1`, id)
	n, err := scanNote(row)
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	return n, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Note, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM note`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+noteCols+` FROM note
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	result, err := collectNotes(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *repoPG) ListByEncounter(ctx context.Context, encounterID string) ([]*Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+noteCols+` FROM note
		WHERE encounter_id = $1
		ORDER BY created_at DESC, id`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("list notes for encounter %s: %w", encounterID, err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.EncounterID, &n.PatientName, &n.Prompt, &n.Body,
		&n.Model, &n.Status, &n.Error, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNotes(rows pgx.Rows) ([]*Note, error) {
	var result []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

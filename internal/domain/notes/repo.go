package notes

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	List(ctx context.Context, limit, offset int) ([]*Note, int, error)
	ListByEncounter(ctx context.Context, encounterID string) ([]*Note, error)
}

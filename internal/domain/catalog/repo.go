package catalog

import (
	"context"

	"github.com/google/uuid"
)

type TestGroupRepository interface {
	Create(ctx context.Context, g *TestGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestGroup, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*TestGroup, error)
	Update(ctx context.Context, g *TestGroup) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f GroupFilter, limit, offset int) ([]*TestGroup, int, error)
}

type TestRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	Update(ctx context.Context, t *Test) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f TestFilter, limit, offset int) ([]*Test, int, error)
	// ListByGroups returns the tests of the given groups ordered by group
	// then position.
	ListByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]*Test, error)
	// Assign moves a test into groupID (nil detaches it) at position.
	Assign(ctx context.Context, testID uuid.UUID, groupID *uuid.UUID, position int) error
	NextPosition(ctx context.Context, groupID uuid.UUID) (int, error)
}

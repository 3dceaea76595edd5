package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/search"
)

// =========== Test Group Repository ===========

type testGroupRepoPG struct{ pool *pgxpool.Pool }

func NewTestGroupRepoPG(pool *pgxpool.Pool) TestGroupRepository {
	return &testGroupRepoPG{pool: pool}
}

const groupCols = `id, name, price, sample_type, sample_tested_in, is_active, created_at, updated_at`

func scanGroup(row pgx.Row) (*TestGroup, error) {
	var g TestGroup
	err := row.Scan(&g.ID, &g.Name, &g.Price, &g.SampleType, &g.SampleTestedIn,
		&g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *testGroupRepoPG) Create(ctx context.Context, g *TestGroup) error {
	g.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_groups (id, name, price, sample_type, sample_tested_in, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Price, g.SampleType, g.SampleTestedIn, g.IsActive,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return db.Classify(err, "test group")
}

func (r *testGroupRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestGroup, error) {
	g, err := scanGroup(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+groupCols+` FROM test_groups WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "test group")
	}
	return g, nil
}

func (r *testGroupRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*TestGroup, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+groupCols+` FROM test_groups WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get test groups: %w", err)
	}
	defer rows.Close()

	var out []*TestGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *testGroupRepoPG) Update(ctx context.Context, g *TestGroup) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE test_groups SET name = $2, price = $3, sample_type = $4, sample_tested_in = $5,
			is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		g.ID, g.Name, g.Price, g.SampleType, g.SampleTestedIn, g.IsActive,
	).Scan(&g.UpdatedAt)
	return db.Classify(err, "test group")
}

// Delete removes the group; its tests go with it through ON DELETE CASCADE.
func (r *testGroupRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM test_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "test group")
	}
	return nil
}

func (r *testGroupRepoPG) List(ctx context.Context, f GroupFilter, limit, offset int) ([]*TestGroup, int, error) {
	q := search.NewQuery("test_groups", groupCols).
		Contains(f.Search, "name", "sample_type").
		OrderBy("name ASC")
	if f.Active != nil {
		q.Eq("is_active", *f.Active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count test groups: %w", err)
	}

	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list test groups: %w", err)
	}
	defer rows.Close()

	var items []*TestGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

// =========== Test Repository ===========

type testRepoPG struct{ pool *pgxpool.Pool }

func NewTestRepoPG(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

const testCols = `id, code, name, normal_range, units, methodology, is_active, test_group_id, position, created_at, updated_at`

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.NormalRange, &t.Units, &t.Methodology,
		&t.IsActive, &t.TestGroupID, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	t.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tests (id, code, name, normal_range, units, methodology, is_active, test_group_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		t.ID, t.Code, t.Name, t.NormalRange, t.Units, t.Methodology, t.IsActive, t.TestGroupID, t.Position,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return db.Classify(err, "test code")
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := scanTest(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+testCols+` FROM tests WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "test")
	}
	return t, nil
}

func (r *testRepoPG) Update(ctx context.Context, t *Test) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE tests SET code = $2, name = $3, normal_range = $4, units = $5, methodology = $6,
			is_active = $7, test_group_id = $8, position = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Code, t.Name, t.NormalRange, t.Units, t.Methodology, t.IsActive, t.TestGroupID, t.Position,
	).Scan(&t.UpdatedAt)
	if db.IsUniqueViolation(err, "tests_code_key") {
		return db.Classify(err, "test code")
	}
	return db.Classify(err, "test")
}

func (r *testRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "test")
	}
	return nil
}

func (r *testRepoPG) List(ctx context.Context, f TestFilter, limit, offset int) ([]*Test, int, error) {
	q := search.NewQuery("tests", testCols).
		Contains(f.Search, "code", "name").
		OrderBy("code ASC")
	if f.GroupID != nil {
		q.Eq("test_group_id", *f.GroupID)
	}
	if f.Unassigned {
		q.Add("test_group_id IS NULL")
	}
	if f.Active != nil {
		q.Eq("is_active", *f.Active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tests: %w", err)
	}

	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var items []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *testRepoPG) ListByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]*Test, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+testCols+` FROM tests WHERE test_group_id = ANY($1)
		 ORDER BY test_group_id, position, created_at`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("list tests by group: %w", err)
	}
	defer rows.Close()

	var out []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *testRepoPG) Assign(ctx context.Context, testID uuid.UUID, groupID *uuid.UUID, position int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE tests SET test_group_id = $2, position = $3, updated_at = NOW() WHERE id = $1`,
		testID, groupID, position)
	if err != nil {
		return db.Classify(err, "test")
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "test")
	}
	return nil
}

func (r *testRepoPG) NextPosition(ctx context.Context, groupID uuid.UUID) (int, error) {
	var next int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM tests WHERE test_group_id = $1`, groupID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next test position: %w", err)
	}
	return next, nil
}

package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

type Service struct {
	groups TestGroupRepository
	tests  TestRepository
}

func NewService(groups TestGroupRepository, tests TestRepository) *Service {
	return &Service{groups: groups, tests: tests}
}

// =========== Test Group Operations ===========

func (s *Service) CreateGroup(ctx context.Context, in *GroupInput) (*TestGroup, error) {
	g := &TestGroup{IsActive: true}
	if err := applyGroupInput(g, in); err != nil {
		return nil, err
	}
	if g.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}
	for _, testID := range in.TestIDs {
		if err := s.AddTest(ctx, g.ID, testID); err != nil {
			return nil, err
		}
	}
	return s.GetGroup(ctx, g.ID)
}

// GetGroup returns the group with its tests in position order.
func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (*TestGroup, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tests, err := s.tests.ListByGroups(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	g.Tests = tests
	return g, nil
}

func (s *Service) ListGroups(ctx context.Context, f GroupFilter, limit, offset int) ([]*TestGroup, int, error) {
	return s.groups.List(ctx, f, limit, offset)
}

func (s *Service) UpdateGroup(ctx context.Context, id uuid.UUID, in *GroupInput) (*TestGroup, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyGroupInput(g, in); err != nil {
		return nil, err
	}
	if g.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.groups.Update(ctx, g); err != nil {
		return nil, err
	}
	for _, testID := range in.TestIDs {
		if err := s.AddTest(ctx, id, testID); err != nil {
			return nil, err
		}
	}
	return s.GetGroup(ctx, id)
}

func (s *Service) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return s.groups.Delete(ctx, id)
}

// AddTest appends a test to the end of a group. A test already in the group
// keeps its position.
func (s *Service) AddTest(ctx context.Context, groupID, testID uuid.UUID) error {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Validation("invalid test %s", testID)
		}
		return err
	}
	if t.TestGroupID != nil && *t.TestGroupID == groupID {
		return nil
	}
	pos, err := s.tests.NextPosition(ctx, groupID)
	if err != nil {
		return err
	}
	return s.tests.Assign(ctx, testID, &groupID, pos)
}

func (s *Service) RemoveTest(ctx context.Context, groupID, testID uuid.UUID) error {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return err
	}
	if t.TestGroupID == nil || *t.TestGroupID != groupID {
		return apperr.NotFound("test %s is not part of test group %s", testID, groupID)
	}
	return s.tests.Assign(ctx, testID, nil, 0)
}

// Resolve loads the groups for ids in the order given, each with its active
// tests. Any id that does not resolve fails the whole call.
func (s *Service) Resolve(ctx context.Context, ids []uuid.UUID) ([]*TestGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.groups.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*TestGroup, len(found))
	groupIDs := make([]uuid.UUID, 0, len(found))
	for _, g := range found {
		byID[g.ID] = g
		groupIDs = append(groupIDs, g.ID)
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperr.Validation("invalid test group")
		}
	}

	tests, err := s.tests.ListByGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, t := range tests {
		if !t.IsActive || t.TestGroupID == nil {
			continue
		}
		if g, ok := byID[*t.TestGroupID]; ok {
			g.Tests = append(g.Tests, t)
		}
	}

	out := make([]*TestGroup, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// =========== Test Operations ===========

func (s *Service) CreateTest(ctx context.Context, in *TestInput) (*Test, error) {
	t := &Test{IsActive: true}
	applyTestInput(t, in)
	if t.Code == "" {
		return nil, apperr.Validation("code is required")
	}
	if t.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if t.TestGroupID != nil {
		if _, err := s.groups.GetByID(ctx, *t.TestGroupID); err != nil {
			return nil, err
		}
		pos, err := s.tests.NextPosition(ctx, *t.TestGroupID)
		if err != nil {
			return nil, err
		}
		t.Position = pos
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, f TestFilter, limit, offset int) ([]*Test, int, error) {
	return s.tests.List(ctx, f, limit, offset)
}

func (s *Service) UpdateTest(ctx context.Context, id uuid.UUID, in *TestInput) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prevGroup := t.TestGroupID
	applyTestInput(t, in)
	if t.Code == "" || t.Name == "" {
		return nil, apperr.Validation("code and name are required")
	}
	if t.TestGroupID != nil && (prevGroup == nil || *prevGroup != *t.TestGroupID) {
		if _, err := s.groups.GetByID(ctx, *t.TestGroupID); err != nil {
			return nil, err
		}
		pos, err := s.tests.NextPosition(ctx, *t.TestGroupID)
		if err != nil {
			return nil, err
		}
		t.Position = pos
	}
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteTest(ctx context.Context, id uuid.UUID) error {
	return s.tests.Delete(ctx, id)
}

func applyGroupInput(g *TestGroup, in *GroupInput) error {
	if in.Name != nil {
		g.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return apperr.Validation("price must not be negative")
		}
		g.Price = *in.Price
	}
	if in.SampleType != nil {
		g.SampleType = in.SampleType
	}
	if in.SampleTestedIn != nil {
		g.SampleTestedIn = in.SampleTestedIn
	}
	if in.IsActive != nil {
		g.IsActive = *in.IsActive
	}
	return nil
}

func applyTestInput(t *Test, in *TestInput) {
	if in.Code != nil {
		t.Code = strings.TrimSpace(*in.Code)
	}
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.NormalRange != nil {
		t.NormalRange = in.NormalRange
	}
	if in.Units != nil {
		t.Units = in.Units
	}
	if in.Methodology != nil {
		t.Methodology = in.Methodology
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if in.TestGroupID != nil {
		t.TestGroupID = in.TestGroupID
	}
}

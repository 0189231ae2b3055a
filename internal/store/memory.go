package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/benadmin/internal/domain"
)

// MemoryStore keeps every table in process memory. It enforces the same
// uniqueness rules as the SQL schema so engine tests observe identical behavior.
type MemoryStore struct {
	mu           sync.RWMutex
	groups       []domain.Group
	providers    []domain.Provider
	plans        map[domain.PlanKind][]domain.Plan
	options      map[domain.PlanKind][]domain.PlanOption
	rates        map[domain.PlanKind][]domain.OptionRate
	participants []domain.Participant
	dependents   []domain.Dependent
	enrollments  map[domain.PlanKind][]domain.Enrollment
	linkages     []domain.ContributionLinkage
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:       make(map[domain.PlanKind][]domain.Plan),
		options:     make(map[domain.PlanKind][]domain.PlanOption),
		rates:       make(map[domain.PlanKind][]domain.OptionRate),
		enrollments: make(map[domain.PlanKind][]domain.Enrollment),
	}
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *MemoryStore) CreateGroup(_ context.Context, g domain.Group) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.groups {
		if existing.Name == g.Name {
			return domain.Group{}, fmt.Errorf("insert group: %w", ErrDuplicate)
		}
	}
	g.ID = newID(g.ID)
	s.groups = append(s.groups, g)
	return g, nil
}

func (s *MemoryStore) FindGroupByName(_ context.Context, name string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.Name == name {
			found := g
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateProvider(_ context.Context, p domain.Provider) (domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.providers {
		if existing.Name == p.Name {
			return domain.Provider{}, fmt.Errorf("insert provider: %w", ErrDuplicate)
		}
	}
	p.ID = newID(p.ID)
	s.providers = append(s.providers, p)
	return p, nil
}

func (s *MemoryStore) FindProviderByName(_ context.Context, name string) (*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreatePlan(_ context.Context, p domain.Plan) (domain.Plan, error) {
	if !p.Kind.Valid() {
		return domain.Plan{}, fmt.Errorf("insert plan: unknown plan kind %q", p.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID(p.ID)
	s.plans[p.Kind] = append(s.plans[p.Kind], p)
	return p, nil
}

func (s *MemoryStore) GetPlan(_ context.Context, kind domain.PlanKind, id string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans[kind] {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindPlans(_ context.Context, f PlanFilter) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Plan
	for _, p := range s.plans[f.Kind] {
		if f.GroupID != "" && p.GroupID != f.GroupID {
			continue
		}
		if f.ProviderID != "" && p.ProviderID != f.ProviderID {
			continue
		}
		if f.Name != "" && p.Name != f.Name {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) CreateOption(_ context.Context, kind domain.PlanKind, o domain.PlanOption) (domain.PlanOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = newID(o.ID)
	s.options[kind] = append(s.options[kind], o)
	return o, nil
}

func (s *MemoryStore) FindOptions(_ context.Context, kind domain.PlanKind, planID string) ([]domain.PlanOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PlanOption
	for _, o := range s.options[kind] {
		if o.PlanID == planID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateRate(_ context.Context, kind domain.PlanKind, r domain.OptionRate) (domain.OptionRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = newID(r.ID)
	s.rates[kind] = append(s.rates[kind], r)
	return r, nil
}

func (s *MemoryStore) FindRates(_ context.Context, kind domain.PlanKind, optionID string) ([]domain.OptionRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OptionRate
	for _, r := range s.rates[kind] {
		if r.OptionID == optionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID(p.ID)
	p.DateOfBirth = calendarDate(p.DateOfBirth)
	s.participants = append(s.participants, p)
	return p, nil
}

func (s *MemoryStore) GetParticipant(_ context.Context, id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindParticipants(_ context.Context, name string, dob time.Time) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dob = calendarDate(dob)
	var out []domain.Participant
	for _, p := range s.participants {
		if p.Name == name && p.DateOfBirth.Equal(dob) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListParticipantsByGroup(_ context.Context, groupID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, p := range s.participants {
		if p.GroupID == groupID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateParticipant(_ context.Context, id string, patch domain.ParticipantPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].ID == id {
			patch.Apply(&s.participants[i])
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateDependent(_ context.Context, d domain.Dependent) (domain.Dependent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = newID(d.ID)
	s.dependents = append(s.dependents, d)
	return d, nil
}

func (s *MemoryStore) FindDependents(_ context.Context, participantID string) ([]domain.Dependent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependent
	for _, d := range s.dependents {
		if d.ParticipantID == participantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateEnrollment(_ context.Context, e domain.Enrollment) (domain.Enrollment, error) {
	if !e.Kind.Valid() {
		return domain.Enrollment{}, fmt.Errorf("insert enrollment: unknown plan kind %q", e.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.enrollments[e.Kind] {
		if existing.ParticipantID == e.ParticipantID && existing.PlanID == e.PlanID && existing.DependentID == e.DependentID {
			return domain.Enrollment{}, fmt.Errorf("insert enrollment: %w", ErrDuplicate)
		}
	}
	e.ID = newID(e.ID)
	s.enrollments[e.Kind] = append(s.enrollments[e.Kind], e)
	return e, nil
}

func (s *MemoryStore) FindEnrollments(_ context.Context, f EnrollmentFilter) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Enrollment
	for _, e := range s.enrollments[f.Kind] {
		if f.ParticipantID != "" && e.ParticipantID != f.ParticipantID {
			continue
		}
		if f.PlanID != "" && e.PlanID != f.PlanID {
			continue
		}
		if f.DependentID != nil && e.DependentID != *f.DependentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) SetEnrollmentTermination(_ context.Context, kind domain.PlanKind, id string, date *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.enrollments[kind] {
		if s.enrollments[kind][i].ID == id {
			s.enrollments[kind][i].TerminationDate = date
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateContributionLinkage(_ context.Context, l domain.ContributionLinkage) (domain.ContributionLinkage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = newID(l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.linkages = append(s.linkages, l)
	return l, nil
}

func (s *MemoryStore) FindContributionLinkages(_ context.Context, enrollmentID string) ([]domain.ContributionLinkage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ContributionLinkage
	for _, l := range s.linkages {
		if l.EnrollmentID == enrollmentID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

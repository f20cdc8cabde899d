package staff

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultShiftLimit = 100

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, m Member) (Member, error) {
	normalize(&m)
	if err := validate(m); err != nil {
		return Member{}, err
	}
	m.ID = uuid.NewString()
	m.Active = true
	if err := s.repo.Create(ctx, &m); err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Member, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, f.Role)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id string, m Member) (Member, error) {
	normalize(&m)
	if err := validate(m); err != nil {
		return Member{}, err
	}
	m.ID = id
	if err := s.repo.Update(ctx, &m); err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) ClockIn(ctx context.Context, staffID string) (Shift, error) {
	m, err := s.repo.Get(ctx, staffID)
	if err != nil {
		return Shift{}, err
	}
	if !m.Active {
		return Shift{}, ErrInactive
	}
	sh := Shift{ID: uuid.NewString(), StaffID: staffID, ClockIn: s.now().UTC()}
	if err := s.repo.OpenShift(ctx, &sh); err != nil {
		return Shift{}, err
	}
	return sh, nil
}

func (s *Service) ClockOut(ctx context.Context, staffID string) (Shift, error) {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return Shift{}, err
	}
	return s.repo.CloseShift(ctx, staffID, s.now().UTC())
}

func (s *Service) Shifts(ctx context.Context, staffID string) ([]Shift, error) {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return nil, err
	}
	return s.repo.Shifts(ctx, staffID, defaultShiftLimit)
}

// Now is the clock used for open shift hours.
func (s *Service) Now() time.Time {
	return s.now()
}

func normalize(m *Member) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	m.Phone = strings.TrimSpace(m.Phone)
	m.Role = Role(strings.ToLower(strings.TrimSpace(string(m.Role))))
}

func validate(m Member) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalid, m.Email)
	}
	if !m.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, m.Role)
	}
	return nil
}

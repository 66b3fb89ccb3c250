package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patiponrmutl/TutorSystem/metrics"
	"github.com/patiponrmutl/TutorSystem/models"
	"github.com/patiponrmutl/TutorSystem/repository"
)

// TutorService owns the business rules for tutors: input validation, email
// uniqueness, existence checks and timestamps. Every mutation runs its
// check-then-write sequence inside one store transaction; the unique index
// on email remains the final authority.
type TutorService struct {
	repo   repository.TutorRepository
	logger *zap.SugaredLogger
	now    func() time.Time
}

type Option func(*TutorService)

// WithClock replaces the wall clock used for timestamps and the recent window.
func WithClock(now func() time.Time) Option {
	return func(s *TutorService) { s.now = now }
}

func NewTutorService(repo repository.TutorRepository, logger *zap.SugaredLogger, opts ...Option) *TutorService {
	s := &TutorService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time in UTC at the store's precision.
func (s *TutorService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TutorService) ListAll(ctx context.Context) (tutors []models.Tutor, err error) {
	defer s.observe("list", &err)
	tutors, err = s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}
	return tutors, nil
}

// GetByID returns nil without error when the tutor does not exist.
func (s *TutorService) GetByID(ctx context.Context, id uint) (tutor *models.Tutor, err error) {
	defer s.observe("get", &err)
	tutor, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tutor %d: %w", id, err)
	}
	return tutor, nil
}

func (s *TutorService) Create(ctx context.Context, input TutorInput) (tutor *models.Tutor, err error) {
	defer s.observe("create", &err)

	in := input.normalize()
	if err = validateInput(in); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(repo repository.TutorRepository) error {
		taken, err := repo.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return &DuplicateEmailError{Email: in.Email}
		}

		now := s.clock()
		t := &models.Tutor{
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
			Subject:   in.Subject,
			Bio:       in.Bio,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Save(ctx, t); err != nil {
			return s.saveError(in.Email, err)
		}
		tutor = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("tutor created", "id", tutor.ID, "email", tutor.Email)
	return tutor, nil
}

func (s *TutorService) Update(ctx context.Context, id uint, input TutorInput) (tutor *models.Tutor, err error) {
	defer s.observe("update", &err)

	in := input.normalize()
	if err = validateInput(in); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(repo repository.TutorRepository) error {
		cur, err := repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find tutor %d: %w", id, err)
		}
		if cur == nil {
			return &NotFoundError{ID: id}
		}

		if cur.Email != in.Email {
			taken, err := repo.ExistsByEmail(ctx, in.Email)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if taken {
				return &DuplicateEmailError{Email: in.Email}
			}
		}

		// updated_at never moves backwards, even if the clock does
		now := s.clock()
		if now.Before(cur.UpdatedAt) {
			now = cur.UpdatedAt
		}

		cur.Name = in.Name
		cur.Email = in.Email
		cur.Phone = in.Phone
		cur.Subject = in.Subject
		cur.Bio = in.Bio
		cur.UpdatedAt = now

		if err := repo.Save(ctx, cur); err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				// deleted since FindByID
				return &NotFoundError{ID: id}
			}
			return s.saveError(in.Email, err)
		}
		tutor = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("tutor updated", "id", tutor.ID)
	return tutor, nil
}

func (s *TutorService) Delete(ctx context.Context, id uint) (err error) {
	defer s.observe("delete", &err)

	err = s.repo.Transaction(ctx, func(repo repository.TutorRepository) error {
		ok, err := repo.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("check tutor %d: %w", id, err)
		}
		if !ok {
			return &NotFoundError{ID: id}
		}
		if err := repo.DeleteByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				return &NotFoundError{ID: id}
			}
			return fmt.Errorf("delete tutor %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Infow("tutor deleted", "id", id)
	return nil
}

func (s *TutorService) SearchByName(ctx context.Context, name string) (tutors []models.Tutor, err error) {
	defer s.observe("search_by_name", &err)
	tutors, err = s.repo.FindByNameContaining(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("search tutors by name: %w", err)
	}
	return tutors, nil
}

// ListBySubject returns the tutors teaching subject, ordered by name.
func (s *TutorService) ListBySubject(ctx context.Context, subject string) (tutors []models.Tutor, err error) {
	defer s.observe("list_by_subject", &err)
	tutors, err = s.repo.FindBySubjectOrdered(ctx, normalizeSubject(subject))
	if err != nil {
		return nil, fmt.Errorf("list tutors by subject: %w", err)
	}
	return tutors, nil
}

func (s *TutorService) SearchBySubjectAndName(ctx context.Context, subject, name string) (tutors []models.Tutor, err error) {
	defer s.observe("search_by_subject_and_name", &err)
	tutors, err = s.repo.FindBySubjectAndNameContaining(ctx, normalizeSubject(subject), name)
	if err != nil {
		return nil, fmt.Errorf("search tutors by subject and name: %w", err)
	}
	return tutors, nil
}

// ListRecent returns tutors created in the last 30 days, measured on the
// service clock.
func (s *TutorService) ListRecent(ctx context.Context) (tutors []models.Tutor, err error) {
	defer s.observe("list_recent", &err)
	tutors, err = s.repo.FindRecent(ctx, s.clock())
	if err != nil {
		return nil, fmt.Errorf("list recent tutors: %w", err)
	}
	return tutors, nil
}

// saveError turns a unique-index rejection into DuplicateEmailError; this is
// the path taken when a concurrent writer slips past the pre-check.
func (s *TutorService) saveError(email string, err error) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		s.logger.Warnw("unique index rejected tutor email", "email", email)
		return &DuplicateEmailError{Email: email}
	}
	return fmt.Errorf("save tutor: %w", err)
}

func (s *TutorService) observe(op string, errp *error) {
	err := *errp
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid_input"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrDuplicateEmail):
		outcome = "duplicate_email"
	default:
		outcome = "error"
		s.logger.Errorw("tutor operation failed", "operation", op, "error", err)
	}
	metrics.ServiceOperations.WithLabelValues(op, outcome).Inc()
}

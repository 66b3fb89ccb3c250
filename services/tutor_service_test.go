package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/patiponrmutl/TutorSystem/config"
	"github.com/patiponrmutl/TutorSystem/database"
	"github.com/patiponrmutl/TutorSystem/metrics"
	"github.com/patiponrmutl/TutorSystem/models"
	"github.com/patiponrmutl/TutorSystem/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	cfg := &config.Config{
		AppPort:    "8080",
		DBDriver:   config.DriverSQLite,
		DBPath:     filepath.Join(t.TempDir(), "tutors.db"),
		DBLogLevel: "silent",
	}
	db, err := database.Connect(cfg, log)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, log))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// fakeClock hands out a fixed time that tests advance by hand.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func newTestService(t *testing.T) (*TutorService, repository.TutorRepository, *fakeClock) {
	repo := repository.NewTutorRepository(setupTestDB(t))
	clock := newFakeClock()
	svc := NewTutorService(repo, zaptest.NewLogger(t).Sugar(), WithClock(clock.Now))
	return svc, repo, clock
}

func countRows(t *testing.T, repo repository.TutorRepository) int {
	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com", Subject: "Math"})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.True(t, a.CreatedAt.Equal(clock.Now()))
	assert.True(t, a.CreatedAt.Equal(a.UpdatedAt))

	b, err := svc.Create(ctx, TutorInput{Name: "Bala", Email: "bala@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	stored, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Math", stored.Subject)
	assert.True(t, stored.CreatedAt.Equal(stored.UpdatedAt))
}

func TestCreate_NormalizesInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	tutor, err := svc.Create(context.Background(), TutorInput{
		Name:  "  Asha   Rao ",
		Email: " Asha@X.com ",
		Phone: " 0812345678 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", tutor.Name)
	assert.Equal(t, "asha@x.com", tutor.Email)
	assert.Equal(t, "0812345678", tutor.Phone)

	_, err = svc.Create(context.Background(), TutorInput{Name: "Other", Email: "ASHA@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail, "emails compare case-insensitively")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, TutorInput{Name: "Bala", Email: "asha@x.com"})
	require.Error(t, err)

	var dup *DuplicateEmailError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "asha@x.com", dup.Email)
	assert.Equal(t, 1, countRows(t, repo))
}

func TestCreate_InvalidInput(t *testing.T) {
	svc, repo, _ := newTestService(t)
	long := func(n int) string {
		b := make([]rune, n)
		for i := range b {
			b[i] = 'ก'
		}
		return string(b)
	}

	cases := []struct {
		name  string
		input TutorInput
		field string
	}{
		{"missing name", TutorInput{Email: "a@x.com"}, "name"},
		{"blank name", TutorInput{Name: "   ", Email: "a@x.com"}, "name"},
		{"long name", TutorInput{Name: long(101), Email: "a@x.com"}, "name"},
		{"missing email", TutorInput{Name: "Asha"}, "email"},
		{"bad email", TutorInput{Name: "Asha", Email: "not-an-email"}, "email"},
		{"long phone", TutorInput{Name: "Asha", Email: "a@x.com", Phone: "0123456789012345"}, "phone"},
		{"long subject", TutorInput{Name: "Asha", Email: "a@x.com", Subject: long(51)}, "subject"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)

			var inv *InvalidInputError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tc.field, inv.Field)
			assert.NotEmpty(t, inv.Reason)
		})
	}

	assert.Equal(t, 0, countRows(t, repo))

	// 100 multi-byte characters is still within the limit
	_, err := svc.Create(context.Background(), TutorInput{Name: long(100), Email: "a@x.com", Bio: long(5000)})
	assert.NoError(t, err)
}

func TestUpdate_OwnEmailIsAllowed(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)
	created := a.CreatedAt

	clock.Advance(time.Hour)
	updated, err := svc.Update(ctx, a.ID, TutorInput{Name: "Asha R", Email: "asha@x.com", Subject: "Physics", Bio: "new"})
	require.NoError(t, err)
	assert.Equal(t, "Asha R", updated.Name)
	assert.Equal(t, "Physics", updated.Subject)
	assert.True(t, updated.CreatedAt.Equal(created), "created_at never changes")
	assert.True(t, updated.UpdatedAt.Equal(clock.Now()))

	stored, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Bio)
	assert.True(t, stored.CreatedAt.Equal(created))
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))
}

func TestUpdate_EmailOwnedByAnother(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com", Phone: "123"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, TutorInput{Name: "Bala", Email: "bala@x.com"})
	require.NoError(t, err)

	before, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = svc.Update(ctx, a.ID, TutorInput{Name: "Changed", Email: "bala@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	after, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Update(context.Background(), 99, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, uint(99), nf.ID)
}

func TestUpdate_UpdatedAtNeverGoesBackwards(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)

	clock.Advance(-time.Hour)
	updated, err := svc.Update(ctx, a.ID, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(a.UpdatedAt))
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestDelete(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)

	err = svc.Delete(ctx, a.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, countRows(t, repo))

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Equal(t, 0, countRows(t, repo))

	got, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScenario_EmailIsFreedByUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), a.ID)

	_, err = svc.Create(ctx, TutorInput{Name: "Bala", Email: "asha@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.Update(ctx, 1, TutorInput{Name: "Asha", Email: "bala@x.com"})
	require.NoError(t, err)

	c, err := svc.Create(ctx, TutorInput{Name: "Chen", Email: "asha@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, uint(1), c.ID)

	require.NoError(t, svc.Delete(ctx, 1))
	assert.ErrorIs(t, svc.Delete(ctx, 1), ErrNotFound)

	// a deleted id is not reused
	d, err := svc.Create(ctx, TutorInput{Name: "Dev", Email: "dev@x.com"})
	require.NoError(t, err)
	assert.Greater(t, d.ID, c.ID)
}

func TestSearchAndListBySubject(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []TutorInput{
		{Name: "Chen", Email: "c@x.com", Subject: "Physics"},
		{Name: "Asha", Email: "a@x.com", Subject: "Physics"},
		{Name: "Bala", Email: "b@x.com", Subject: "Math"},
		{Name: "Chandra", Email: "ch@x.com", Subject: "Math"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	found, err := svc.SearchByName(ctx, "ch")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	physics, err := svc.ListBySubject(ctx, "Physics")
	require.NoError(t, err)
	require.Len(t, physics, 2)
	assert.Equal(t, "Asha", physics[0].Name)
	assert.Equal(t, "Chen", physics[1].Name)

	mathCh, err := svc.SearchBySubjectAndName(ctx, "Math", "CH")
	require.NoError(t, err)
	require.Len(t, mathCh, 1)
	assert.Equal(t, "Chandra", mathCh[0].Name)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListBySubject_NormalizesLookup(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "a@x.com", Subject: "Computer  Science"})
	require.NoError(t, err)

	got, err := svc.ListBySubject(ctx, "Computer  Science")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Computer Science", got[0].Subject)

	got, err = svc.ListBySubject(ctx, " Computer Science ")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.SearchBySubjectAndName(ctx, "Computer\tScience", "ash")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListRecent(t *testing.T) {
	svc, repo, clock := newTestService(t)
	ctx := context.Background()

	fresh, err := svc.Create(ctx, TutorInput{Name: "Fresh", Email: "f@x.com"})
	require.NoError(t, err)

	old := clock.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, repo.Save(ctx, &models.Tutor{Name: "Old", Email: "o@x.com", CreatedAt: old, UpdatedAt: old}))

	recent, err := svc.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.ID, recent[0].ID)
}

// blindRepo hides existing emails from the pre-check, standing in for a
// concurrent writer that committed between check and write.
type blindRepo struct {
	repository.TutorRepository
}

func (b blindRepo) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }

func (b blindRepo) Transaction(ctx context.Context, fn func(repository.TutorRepository) error) error {
	return b.TutorRepository.Transaction(ctx, func(tx repository.TutorRepository) error {
		return fn(blindRepo{tx})
	})
}

// vanishingRepo deletes each row right after FindByID returns it, standing
// in for a Delete that commits between the read and the write of an Update.
type vanishingRepo struct {
	repository.TutorRepository
}

func (v vanishingRepo) FindByID(ctx context.Context, id uint) (*models.Tutor, error) {
	t, err := v.TutorRepository.FindByID(ctx, id)
	if err != nil || t == nil {
		return t, err
	}
	if err := v.TutorRepository.DeleteByID(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (v vanishingRepo) Transaction(ctx context.Context, fn func(repository.TutorRepository) error) error {
	return v.TutorRepository.Transaction(ctx, func(tx repository.TutorRepository) error {
		return fn(vanishingRepo{tx})
	})
}

func TestUpdate_DeletedMidwayIsNotFound(t *testing.T) {
	repo := repository.NewTutorRepository(setupTestDB(t))
	ctx := context.Background()

	a, err := NewTutorService(repo, zaptest.NewLogger(t).Sugar()).
		Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)

	svc := NewTutorService(vanishingRepo{repo}, zaptest.NewLogger(t).Sugar())
	_, err = svc.Update(ctx, a.ID, TutorInput{Name: "Asha Rao", Email: "asha@x.com"})
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, a.ID, nf.ID)

	// the transaction rolled back, so the delete is undone as well and
	// nothing was written under the old id
	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Asha", stored.Name)
	assert.Equal(t, 1, countRows(t, repo))
}

func TestUpdate_AfterCommittedDeleteIsNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, a.ID))

	_, err = svc.Update(ctx, a.ID, TutorInput{Name: "Asha Rao", Email: "asha@x.com"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, countRows(t, repo))
}

func TestCreate_UniqueIndexIsFinalAuthority(t *testing.T) {
	repo := repository.NewTutorRepository(setupTestDB(t))
	svc := NewTutorService(blindRepo{repo}, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	a, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, TutorInput{Name: "Bala", Email: "bala@x.com"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, TutorInput{Name: "Chen", Email: "asha@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.Update(ctx, b.ID, TutorInput{Name: "Bala", Email: "asha@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	stored, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bala@x.com", stored.Email)
	assert.Equal(t, 2, countRows(t, repo))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreate_ConcurrentSameEmail(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, TutorInput{Name: "Asha", Email: "asha@x.com"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
	assert.Equal(t, 1, countRows(t, repo))
}

func TestObserve_CountsOutcomes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.ServiceOperations.WithLabelValues("delete", "not_found"))
	_ = svc.Delete(ctx, 12345)
	after := testutil.ToFloat64(metrics.ServiceOperations.WithLabelValues("delete", "not_found"))

	assert.Equal(t, before+1, after)
}

// Package repository is the query layer over the tutors table. It issues
// single-statement reads and writes and knows nothing about business rules.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/patiponrmutl/TutorSystem/models"
)

// RecentWindow is how far back FindRecent looks.
const RecentWindow = 30 * 24 * time.Hour

var (
	// ErrDuplicateKey is returned when the store rejects a write on a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoRows is returned by DeleteByID and by an updating Save when no
	// row has the given id.
	ErrNoRows = errors.New("no rows affected")
)

type TutorRepository interface {
	ListAll(ctx context.Context) ([]models.Tutor, error)
	FindByID(ctx context.Context, id uint) (*models.Tutor, error)
	FindByEmail(ctx context.Context, email string) (*models.Tutor, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
	Save(ctx context.Context, t *models.Tutor) error
	DeleteByID(ctx context.Context, id uint) error
	FindByNameContaining(ctx context.Context, name string) ([]models.Tutor, error)
	FindBySubjectOrdered(ctx context.Context, subject string) ([]models.Tutor, error)
	FindBySubjectAndNameContaining(ctx context.Context, subject, name string) ([]models.Tutor, error)
	FindRecent(ctx context.Context, now time.Time) ([]models.Tutor, error)

	// Transaction runs fn against a repository bound to a single store
	// transaction. It commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(repo TutorRepository) error) error
}

type GormTutorRepository struct {
	DB *gorm.DB
}

func NewTutorRepository(db *gorm.DB) TutorRepository {
	return &GormTutorRepository{DB: db}
}

func (r *GormTutorRepository) ListAll(ctx context.Context) ([]models.Tutor, error) {
	var tutors []models.Tutor
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&tutors).Error; err != nil {
		return nil, err
	}
	return tutors, nil
}

func (r *GormTutorRepository) FindByID(ctx context.Context, id uint) (*models.Tutor, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormTutorRepository) FindByEmail(ctx context.Context, email string) (*models.Tutor, error) {
	return r.first(ctx, "email = ?", email)
}

// first returns nil, nil when no row matches.
func (r *GormTutorRepository) first(ctx context.Context, query string, args ...any) (*models.Tutor, error) {
	var tutors []models.Tutor
	if err := r.DB.WithContext(ctx).Where(query, args...).Limit(1).Find(&tutors).Error; err != nil {
		return nil, err
	}
	if len(tutors) == 0 {
		return nil, nil
	}
	return &tutors[0], nil
}

func (r *GormTutorRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *GormTutorRepository) ExistsByID(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, "id = ?", id)
}

func (r *GormTutorRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var cnt int64
	if err := r.DB.WithContext(ctx).Model(&models.Tutor{}).Where(query, args...).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Save inserts t when it has no ID and updates every column otherwise. An
// update never inserts: when no row has t.ID it returns ErrNoRows.
func (r *GormTutorRepository) Save(ctx context.Context, t *models.Tutor) error {
	if t.ID == 0 {
		return translate(r.DB.WithContext(ctx).Create(t).Error)
	}

	res := r.DB.WithContext(ctx).Model(t).Select("*").Where("id = ?", t.ID).Updates(t)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *GormTutorRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Tutor{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

// FindByNameContaining matches case-insensitively. LIKE wildcards in name
// are matched literally.
func (r *GormTutorRepository) FindByNameContaining(ctx context.Context, name string) ([]models.Tutor, error) {
	var tutors []models.Tutor
	err := r.DB.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, containsPattern(name)).
		Order("name ASC").Order("id ASC").
		Find(&tutors).Error
	if err != nil {
		return nil, err
	}
	return tutors, nil
}

func (r *GormTutorRepository) FindBySubjectOrdered(ctx context.Context, subject string) ([]models.Tutor, error) {
	var tutors []models.Tutor
	err := r.DB.WithContext(ctx).
		Where("subject = ?", subject).
		Order("name ASC").Order("id ASC").
		Find(&tutors).Error
	if err != nil {
		return nil, err
	}
	return tutors, nil
}

func (r *GormTutorRepository) FindBySubjectAndNameContaining(ctx context.Context, subject, name string) ([]models.Tutor, error) {
	var tutors []models.Tutor
	err := r.DB.WithContext(ctx).
		Where("subject = ?", subject).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, containsPattern(name)).
		Order("name ASC").Order("id ASC").
		Find(&tutors).Error
	if err != nil {
		return nil, err
	}
	return tutors, nil
}

// FindRecent returns tutors created within RecentWindow of now. The caller
// supplies now so the window follows the service clock, not the store's.
func (r *GormTutorRepository) FindRecent(ctx context.Context, now time.Time) ([]models.Tutor, error) {
	var tutors []models.Tutor
	err := r.DB.WithContext(ctx).
		Where("created_at >= ?", now.UTC().Add(-RecentWindow)).
		Order("created_at DESC").Order("id DESC").
		Find(&tutors).Error
	if err != nil {
		return nil, err
	}
	return tutors, nil
}

func (r *GormTutorRepository) Transaction(ctx context.Context, fn func(repo TutorRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormTutorRepository{DB: tx})
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// translate maps unique-index violations from any supported driver onto
// ErrDuplicateKey and leaves every other error untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}

func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

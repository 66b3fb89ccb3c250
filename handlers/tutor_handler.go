package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/patiponrmutl/TutorSystem/models"
	"github.com/patiponrmutl/TutorSystem/services"
)

// TutorService is the slice of services.TutorService the HTTP layer uses.
type TutorService interface {
	ListAll(ctx context.Context) ([]models.Tutor, error)
	GetByID(ctx context.Context, id uint) (*models.Tutor, error)
	Create(ctx context.Context, input services.TutorInput) (*models.Tutor, error)
	Update(ctx context.Context, id uint, input services.TutorInput) (*models.Tutor, error)
	Delete(ctx context.Context, id uint) error
	SearchByName(ctx context.Context, name string) ([]models.Tutor, error)
	SearchBySubjectAndName(ctx context.Context, subject, name string) ([]models.Tutor, error)
	ListBySubject(ctx context.Context, subject string) ([]models.Tutor, error)
	ListRecent(ctx context.Context) ([]models.Tutor, error)
}

type TutorHandler struct {
	svc    TutorService
	logger *zap.SugaredLogger
}

func NewTutorHandler(svc TutorService, logger *zap.SugaredLogger) *TutorHandler {
	return &TutorHandler{svc: svc, logger: logger}
}

type tutorPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Bio     string `json:"bio"`
}

type tutorResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toInput(p tutorPayload) services.TutorInput {
	return services.TutorInput{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Subject: p.Subject,
		Bio:     p.Bio,
	}
}

func toResponse(t *models.Tutor) tutorResponse {
	return tutorResponse{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Phone:     t.Phone,
		Subject:   t.Subject,
		Bio:       t.Bio,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toResponses(ts []models.Tutor) []tutorResponse {
	out := make([]tutorResponse, 0, len(ts))
	for i := range ts {
		out = append(out, toResponse(&ts[i]))
	}
	return out
}

/*** CRUD ***/

// GET /api/tutors
func (h *TutorHandler) List(c echo.Context) error {
	items, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(items))
}

// GET /api/tutors/:id
func (h *TutorHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_ID"})
	}
	t, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, toResponse(t))
}

// POST /api/tutors
func (h *TutorHandler) Create(c echo.Context) error {
	var p tutorPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	t, err := h.svc.Create(c.Request().Context(), toInput(p))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toResponse(t))
}

// PUT /api/tutors/:id
func (h *TutorHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_ID"})
	}
	var p tutorPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	t, err := h.svc.Update(c.Request().Context(), id, toInput(p))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(t))
}

// DELETE /api/tutors/:id
func (h *TutorHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_ID"})
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

/*** Queries ***/

// GET /api/tutors/search?name=&subject=
func (h *TutorHandler) Search(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":  "VALIDATION_ERROR",
			"fields": map[string]string{"name": "is required"},
		})
	}

	var (
		items []models.Tutor
		err   error
	)
	if subject := strings.TrimSpace(c.QueryParam("subject")); subject != "" {
		items, err = h.svc.SearchBySubjectAndName(c.Request().Context(), subject, name)
	} else {
		items, err = h.svc.SearchByName(c.Request().Context(), name)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(items))
}

// GET /api/tutors/subject/:subject
func (h *TutorHandler) ListBySubject(c echo.Context) error {
	items, err := h.svc.ListBySubject(c.Request().Context(), c.Param("subject"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(items))
}

// GET /api/tutors/recent
func (h *TutorHandler) ListRecent(c echo.Context) error {
	items, err := h.svc.ListRecent(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(items))
}

func parseID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// fail maps service errors onto HTTP responses.
func (h *TutorHandler) fail(c echo.Context, err error) error {
	var (
		inv *services.InvalidInputError
		nf  *services.NotFoundError
		dup *services.DuplicateEmailError
	)
	switch {
	case errors.As(err, &inv):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":  "VALIDATION_ERROR",
			"fields": map[string]string{inv.Field: inv.Reason},
		})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND", "id": nf.ID})
	case errors.As(err, &dup):
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_EMAIL", "email": dup.Email})
	default:
		h.logger.Errorw("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
}

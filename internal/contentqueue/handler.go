package contentqueue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/pkg/ctxlog"
	"github.com/bissquit/contentq/internal/pkg/httputil"
	"github.com/bissquit/contentq/internal/pkg/slug"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrItemNotFound, Status: http.StatusNotFound, Message: "queue item not found"},
	{Error: ErrSlugExists, Status: http.StatusConflict, Message: "slug already exists"},
	{Error: ErrSlotTaken, Status: http.StatusConflict, Message: "publish slot already taken"},
	{Error: ErrItemTerminal, Status: http.StatusConflict, Message: "item is already published or failed, use reschedule"},
	{Error: ErrInvalidSlug, Status: http.StatusBadRequest},
	{Error: ErrTitleRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidSocialStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidContentType, Status: http.StatusBadRequest},
	{Error: ErrInvalidSourcePath, Status: http.StatusBadRequest},
	{Error: ErrInvalidScheduleTime, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the content queue.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new queue handler.
func NewHandler(service *Service) *Handler {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsValid(fl.Field().String())
	})

	return &Handler{
		service:   service,
		validator: v,
	}
}

// RegisterPublicRoutes registers read-only queue routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/queue", h.ListQueue)
	r.Get("/queue/next-slot", h.GetNextSlot)
	r.Get("/queue/stats", h.GetStats)
	r.Get("/queue/due", h.GetDueItems)
	r.Get("/queue/slug/{slug}", h.GetBySlug)
	r.Get("/queue/{id}", h.GetItem)
}

// RegisterOperatorRoutes registers queue mutations.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/queue", h.QueueEssay)
	r.Post("/queue/drafts", h.AddDraft)
	r.Post("/queue/process", h.ProcessQueue)
	r.Post("/queue/{id}/schedule", h.ScheduleDraft)
	r.Post("/queue/{id}/reschedule", h.Reschedule)
	r.Post("/queue/{id}/publish", h.MarkPublished)
	r.Post("/queue/{id}/fail", h.MarkFailed)
	r.Put("/queue/{id}/social", h.UpdateSocialStatus)
	r.Delete("/queue/{id}", h.DeleteItem)
}

// CreateItemRequest represents request body for queueing an essay or adding a draft.
type CreateItemRequest struct {
	Slug            string     `json:"slug" validate:"omitempty,slug"`
	Title           string     `json:"title" validate:"required,max=500"`
	ContentType     string     `json:"content_type" validate:"omitempty,oneof=essay guide tutorial announcement"`
	Priority        int        `json:"priority" validate:"gte=0"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	SocialPlatforms []string   `json:"social_platforms" validate:"omitempty,dive,required,max=50"`
	SourcePath      string     `json:"source_path" validate:"max=1000"`
}

// ScheduleRequest represents request body for scheduling a draft.
type ScheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// RescheduleRequest represents request body for rescheduling an item.
// ScheduledAt accepts RFC 3339 or "tomorrow 9am".
type RescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required"`
}

// FailRequest represents request body for marking an item failed.
type FailRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// SocialStatusRequest represents request body for updating social status.
type SocialStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending queued posted skipped"`
}

// NextSlotResponse is returned by GET /queue/next-slot.
type NextSlotResponse struct {
	NextSlot time.Time `json:"next_slot"`
}

// ListQueue handles GET /queue.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	var status *domain.QueueStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.QueueStatus(s)
		status = &st
	}

	items, err := h.service.ListQueue(r.Context(), status)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// GetNextSlot handles GET /queue/next-slot.
func (h *Handler) GetNextSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.service.GetNextSlot(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NextSlotResponse{NextSlot: slot})
}

// GetStats handles GET /queue/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetQueueStats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// GetDueItems handles GET /queue/due.
func (h *Handler) GetDueItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetDueItems(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// GetItem handles GET /queue/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// GetBySlug handles GET /queue/slug/{slug}.
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// QueueEssay handles POST /queue.
func (h *Handler) QueueEssay(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, h.service.QueueEssay)
}

// AddDraft handles POST /queue/drafts.
func (h *Handler) AddDraft(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, func(ctx context.Context, itemSlug, title string, opts QueueOptions) (*domain.QueueItem, error) {
		opts.ScheduledAt = nil
		return h.service.AddDraft(ctx, itemSlug, title, opts)
	})
}

type createFunc func(ctx context.Context, itemSlug, title string, opts QueueOptions) (*domain.QueueItem, error)

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request, create createFunc) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	itemSlug := req.Slug
	if itemSlug == "" {
		itemSlug = slug.FromTitle(req.Title)
	}

	platforms := make([]domain.Platform, 0, len(req.SocialPlatforms))
	for _, p := range req.SocialPlatforms {
		platforms = append(platforms, domain.Platform(p))
	}

	item, err := create(r.Context(), itemSlug, req.Title, QueueOptions{
		ScheduledAt:     req.ScheduledAt,
		ContentType:     domain.ContentType(req.ContentType),
		Priority:        req.Priority,
		SocialPlatforms: platforms,
		SourcePath:      req.SourcePath,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	ctxlog.FromContext(r.Context()).Info("queue item created",
		"item_id", item.ID,
		"slug", item.Slug,
		"status", item.Status,
		"operator", httputil.GetOperator(r.Context()),
	)

	httputil.Success(w, http.StatusCreated, item)
}

// ScheduleDraft handles POST /queue/{id}/schedule.
func (h *Handler) ScheduleDraft(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	item, err := h.service.ScheduleDraft(r.Context(), chi.URLParam(r, "id"), req.ScheduledAt)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// Reschedule handles POST /queue/{id}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	cfg := h.service.SpacingConfig(r.Context())
	at, err := ParseScheduleTime(req.ScheduledAt, h.service.now(), cfg.Location())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	item, err := h.service.Reschedule(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// MarkPublished handles POST /queue/{id}/publish.
func (h *Handler) MarkPublished(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.MarkPublished(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// MarkFailed handles POST /queue/{id}/fail.
func (h *Handler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	var req FailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	item, err := h.service.MarkFailed(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// UpdateSocialStatus handles PUT /queue/{id}/social.
func (h *Handler) UpdateSocialStatus(w http.ResponseWriter, r *http.Request) {
	var req SocialStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	item, err := h.service.UpdateSocialStatus(r.Context(), chi.URLParam(r, "id"), domain.SocialStatus(req.Status))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /queue/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFromQueue(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProcessQueue handles POST /queue/process.
func (h *Handler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessQueue(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/jobs"
	"github.com/razoraze123/dolibar/internal/profiles"
	"github.com/razoraze123/dolibar/internal/queue"
)

// ProductReader serves persisted products. *database.DB satisfies it.
type ProductReader interface {
	ProductByURL(ctx context.Context, url string) (*database.Product, error)
	VariantsByProduct(ctx context.Context, productID int64) ([]database.Variant, error)
}

type Handlers struct {
	jobs     *jobs.Manager
	profiles *profiles.Store
	products ProductReader
	logger   *slog.Logger
}

// NewHandlers wires the HTTP handlers. products may be nil when no
// database is configured.
func NewHandlers(manager *jobs.Manager, store *profiles.Store, products ProductReader) *Handlers {
	return &Handlers{
		jobs:     manager,
		profiles: store,
		products: products,
		logger:   slog.Default().With("component", "api"),
	}
}

type ScrapeRequest struct {
	Mode string   `json:"mode"`
	URLs []string `json:"urls"`
}

type ScrapeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

var validModes = map[queue.Mode]bool{
	queue.ModeVariants:    true,
	queue.ModeNames:       true,
	queue.ModeImages:      true,
	queue.ModePrice:       true,
	queue.ModeDescription: true,
	queue.ModeCollection:  true,
}

// CreateScrape accepts a batch of URLs and starts a scrape job.
func (h *Handlers) CreateScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := queue.Mode(req.Mode)
	if !validModes[mode] {
		h.respondError(w, http.StatusBadRequest, "unknown mode")
		return
	}
	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "at least one url is required")
		return
	}

	job, err := h.jobs.Submit(r.Context(), mode, req.URLs)
	if err != nil {
		h.logger.Error("job submission failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, ScrapeResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// GetJob returns one job with its progress and results.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns all known jobs, newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

// ProductResponse pairs a persisted product with its stored variants.
type ProductResponse struct {
	ID          int64              `json:"id"`
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	Price       string             `json:"price,omitempty"`
	Description string             `json:"description,omitempty"`
	Variants    []database.Variant `json:"variants"`
}

// GetProduct returns a persisted product and its variants by URL.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	if h.products == nil {
		h.respondError(w, http.StatusServiceUnavailable, "product storage not configured")
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	product, err := h.products.ProductByURL(r.Context(), url)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("product lookup failed", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	variants, err := h.products.VariantsByProduct(r.Context(), product.ID)
	if err != nil {
		h.logger.Error("variant lookup failed", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load variants")
		return
	}

	h.respondJSON(w, http.StatusOK, ProductResponse{
		ID:          product.ID,
		URL:         product.URL,
		Title:       product.Title,
		Price:       product.Price.String,
		Description: product.Description.String,
		Variants:    variants,
	})
}

// ListProfiles returns the stored site profiles.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.profiles.List())
}

// SaveProfile creates or updates a site profile.
func (h *Handlers) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile profiles.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.profiles.Save(&profile); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

// DeleteProfile removes a site profile.
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.profiles.Delete(name); err != nil {
		h.respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("response encoding failed", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

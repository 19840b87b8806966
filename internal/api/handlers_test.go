package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/jobs"
	"github.com/razoraze123/dolibar/internal/profiles"
	"github.com/razoraze123/dolibar/internal/queue"
)

func newTestRouter(t *testing.T) http.Handler {
	return newTestRouterWithProducts(t, nil)
}

func newTestRouterWithProducts(t *testing.T, products ProductReader) http.Handler {
	t.Helper()

	runner := jobs.RunnerFunc(func(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
		return json.RawMessage(`{"title":"Bob Ficelle"}`), nil
	})
	manager := jobs.NewManager(jobs.Config{ConcurrentPages: 1}, runner, nil, nil)

	store, err := profiles.NewStore(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)

	return NewRouter(NewHandlers(manager, store, products), nil)
}

// fakeProducts serves one product by URL.
type fakeProducts struct {
	product  *database.Product
	variants []database.Variant
}

func (f *fakeProducts) ProductByURL(ctx context.Context, url string) (*database.Product, error) {
	if f.product == nil || f.product.URL != url {
		return nil, database.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeProducts) VariantsByProduct(ctx context.Context, productID int64) ([]database.Variant, error) {
	return f.variants, nil
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateScrapeAndGetJob(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scrape",
		`{"mode":"variants","urls":["https://shop.example/products/bob"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.JobID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+created.JobID, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var job jobs.Job
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		if job.Status == jobs.StatusCompleted {
			require.Len(t, job.Results, 1)
			assert.JSONEq(t, `{"title":"Bob Ficelle"}`, string(job.Results[0].Data))
			break
		}
		require.True(t, time.Now().Before(deadline), "job never completed")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateScrapeValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scrape", `{"mode":"teleport","urls":["https://x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/scrape", `{"mode":"variants","urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/scrape", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateScrapeAcceptsNamesMode(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/api/v1/scrape",
		`{"mode":"names","urls":["https://shop.example/products/bob"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGetProduct(t *testing.T) {
	products := &fakeProducts{
		product: &database.Product{ID: 7, URL: "https://shop.example/products/bob", Title: "Bob Ficelle"},
		variants: []database.Variant{
			{ProductID: 7, Name: "Rouge", ImageURL: "https://cdn.example/rouge.png", Position: 0},
		},
	}
	router := newTestRouterWithProducts(t, products)

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/products?url=https%3A%2F%2Fshop.example%2Fproducts%2Fbob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bob Ficelle", resp.Title)
	require.Len(t, resp.Variants, 1)
	assert.Equal(t, "Rouge", resp.Variants[0].Name)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/products?url=https%3A%2F%2Felsewhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProductWithoutStorage(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/api/v1/products?url=https%3A%2F%2Fx", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/api/v1/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfilesEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/profiles/",
		`{"name":"planete-bob","host":"planetebob.fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/profiles/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []profiles.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "planete-bob", list[0].Name)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/profiles/planete-bob", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/profiles/planete-bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/scheduler"
	"github.com/arkaiv/arkaiv/pkg/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type triggerFunc func(context.Context) (*model.DailyDigest, error)

func (f triggerFunc) Trigger(ctx context.Context) (*model.DailyDigest, error) { return f(ctx) }

func newTestRouter(t *testing.T, s *store.MemoryStore, trig Trigger) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return NewRouter(Config{Tools: s, Digests: s, Trigger: trig, Metrics: m}), m
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, http.NoBody))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func seedDigest(t *testing.T, s *store.MemoryStore, day time.Time, summary string) {
	t.Helper()
	var top model.TopEntries
	top.Set(model.SourceGitHub, nil)
	_, err := s.UpsertDaily(context.Background(), model.DailyDigest{Date: day, TotalTools: 4, Summary: summary, TopEntries: top})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, store.NewMemoryStore(), nil)
	w := do(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}

func TestLatestDigest(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	r, _ := newTestRouter(t, s, nil)

	w := do(r, http.MethodGet, "/api/digest/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No digest found", decode[map[string]string](t, w)["error"])

	seedDigest(t, s, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "older")
	seedDigest(t, s, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "newer")

	w = do(r, http.MethodGet, "/api/digest/latest")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "newer", got["summary"])
	assert.Contains(t, got, "formattedDocument")
	assert.Contains(t, got, "topEntries")
}

func TestDigestByDate(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	seedDigest(t, s, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "jan 1")
	r, _ := newTestRouter(t, s, nil)

	w := do(r, http.MethodGet, "/api/digest/2024-01-01")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jan 1", decode[map[string]any](t, w)["summary"])

	w = do(r, http.MethodGet, "/api/digest/2024-01-02")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/digest/yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListToolsAndSearch(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	for _, rec := range []model.ToolRecord{
		{Name: "foo", Source: model.SourceGitHub, URL: "https://github.com/acme/foo", Description: "Agent toolkit", Metrics: model.Metrics{Stars: 10}},
		{Name: "bar", Source: model.SourceGitHub, URL: "https://github.com/acme/bar", Metrics: model.Metrics{Stars: 99}},
		{Name: "bert", Source: model.SourceHuggingFace, URL: "https://huggingface.co/bert", Metrics: model.Metrics{Downloads: 5}},
	} {
		_, err := s.UpsertTool(context.Background(), rec)
		require.NoError(t, err)
	}
	r, _ := newTestRouter(t, s, nil)

	w := do(r, http.MethodGet, "/api/tools?source=github")
	require.Equal(t, http.StatusOK, w.Code)
	tools := decode[[]model.ToolRecord](t, w)
	require.Len(t, tools, 2)
	assert.Equal(t, "bar", tools[0].Name)

	w = do(r, http.MethodGet, "/api/tools?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.ToolRecord](t, w), 1)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/tools?source=gitlab").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/tools?limit=-3").Code)

	w = do(r, http.MethodGet, "/api/search?query=AGENT")
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]model.ToolRecord](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "foo", found[0].Name)

	w = do(r, http.MethodGet, "/api/search")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(r, http.MethodGet, "/api/search?query=nothing-matches")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()

	r, _ := newTestRouter(t, s, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/api/digest/generate").Code)

	r, _ = newTestRouter(t, s, triggerFunc(func(context.Context) (*model.DailyDigest, error) {
		return &model.DailyDigest{Summary: "fresh"}, nil
	}))
	w := do(r, http.MethodPost, "/api/digest/generate")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decode[map[string]any](t, w)["summary"])

	r, _ = newTestRouter(t, s, triggerFunc(func(context.Context) (*model.DailyDigest, error) {
		return nil, scheduler.ErrRunning
	}))
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/digest/generate").Code)

	r, _ = newTestRouter(t, s, triggerFunc(func(context.Context) (*model.DailyDigest, error) {
		return nil, &store.RepositoryError{Op: "upsert", Err: errors.New("down")}
	}))
	w = do(r, http.MethodPost, "/api/digest/generate")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate digest", decode[map[string]string](t, w)["error"])
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, store.NewMemoryStore(), nil)
	do(r, http.MethodGet, "/api/digest/2024-01-01")
	do(r, http.MethodGet, "/api/digest/2024-01-02")

	w := do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `arkaiv_http_requests_total{method="GET",route="/api/digest/:date",status="404"} 2`)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	r := NewRouter(Config{Tools: store.NewMemoryStore(), Digests: panicDigests{}})
	w := do(r, http.MethodGet, "/api/digest/latest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type panicDigests struct{ store.DigestRepository }

func (panicDigests) Latest(context.Context) (*model.DailyDigest, error) { panic("boom") }

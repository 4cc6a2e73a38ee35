package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ensemble"
	"ProspectScanner/internal/infrastructure/httpapi"
	"ProspectScanner/internal/infrastructure/storage"
	"ProspectScanner/internal/logging"
	"ProspectScanner/pkg/metrics"
)

type stubCampaigns struct {
	description string
	max         int
	urls        []string
	err         error
}

func (s *stubCampaigns) RunCampaign(_ context.Context, description string, maxOrganizations int) ([]domain.Prospect, error) {
	s.description = description
	s.max = maxOrganizations
	return []domain.Prospect{{URL: "https://reef.org"}}, s.err
}

func (s *stubCampaigns) CrawlURLs(_ context.Context, urls []string) ([]domain.Prospect, error) {
	s.urls = urls
	out := make([]domain.Prospect, len(urls))
	for i, u := range urls {
		out[i] = domain.Prospect{URL: u}
	}
	return out, s.err
}

type stubScorer struct {
	scored []domain.ScoredProspect
	err    error
}

func (s *stubScorer) Score(_ context.Context, p domain.Prospect) (domain.ScoringResult, error) {
	if p.ContentText == "" {
		return domain.ScoringResult{}, errors.New("empty content")
	}
	return ensemble.Combine(map[string]float64{"a": 0.9, "b": 0.9, "c": 0.9}), s.err
}

func (s *stubScorer) ScoreURL(_ context.Context, url string) (domain.ScoredProspect, bool, error) {
	for _, sp := range s.scored {
		if sp.URL == url {
			return sp, true, nil
		}
	}
	return domain.ScoredProspect{}, false, s.err
}

func (s *stubScorer) BatchScore(context.Context) ([]domain.ScoredProspect, error) {
	return s.scored, s.err
}

func (s *stubScorer) Retrain(context.Context) (*ensemble.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ensemble.Snapshot{ID: "model-1", Rows: 7, TrainedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}, nil
}

type fixture struct {
	router    *gin.Engine
	repo      *storage.MemoryRepository
	campaigns *stubCampaigns
	scorer    *stubScorer
	metrics   *metrics.Manager
}

func setupRouter(t *testing.T) fixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	repo := storage.NewMemoryRepository()
	for _, p := range []domain.Prospect{
		{URL: "https://reef.org", OrganizationName: "Reef Trust", Emails: []string{"hi@reef.org"}, Scores: domain.HeuristicScores{Final: 0.8}},
		{URL: "https://kelp.org", OrganizationName: "Kelp Co", Scores: domain.HeuristicScores{Final: 0.3333}},
	} {
		if err := repo.Upsert(context.Background(), p); err != nil {
			t.Fatalf("seed repo: %v", err)
		}
	}

	f := fixture{
		repo:      repo,
		campaigns: &stubCampaigns{},
		scorer: &stubScorer{scored: []domain.ScoredProspect{
			{ID: 1, URL: "https://reef.org", AIScore: 0.7, Recommendation: domain.RecommendationMedium},
		}},
		metrics: metrics.NewManager(),
	}
	f.router = httpapi.NewRouter(httpapi.NewHandler(f.repo, f.campaigns, f.scorer), f.metrics, logging.Discard())
	return f
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, target, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var payload map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w, payload
}

func TestHealth(t *testing.T) {
	f := setupRouter(t)
	w, body := do(t, f.router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
}

func TestListProspects(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodGet, "/api/donor/prospects", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	prospects := body["prospects"].([]any)
	if len(prospects) != 2 {
		t.Fatalf("prospects = %d, want 2", len(prospects))
	}
	first := prospects[0].(map[string]any)
	if first["url"] != "https://reef.org" || first["final_score"] != 0.8 {
		t.Fatalf("first = %v", first)
	}
	if phones, ok := first["phones"].([]any); !ok || len(phones) != 0 {
		t.Fatalf("phones should be an empty array, got %v", first["phones"])
	}

	w, _ = do(t, f.router, http.MethodGet, "/api/donor/prospects?limit=-1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative limit status = %d", w.Code)
	}
}

func TestLookupProspect(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodGet, "/api/donor/prospects/lookup?url=https://kelp.org", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if body["prospect"].(map[string]any)["organization_name"] != "Kelp Co" {
		t.Fatalf("body = %v", body)
	}

	w, body = do(t, f.router, http.MethodGet, "/api/donor/prospects/lookup?url=https://missing.org", "")
	if w.Code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("missing: status = %d, body = %v", w.Code, body)
	}

	w, _ = do(t, f.router, http.MethodGet, "/api/donor/prospects/lookup", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no url: status = %d", w.Code)
	}
}

func TestStartCrawlDefaultsToThreeOrganizations(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/crawl", `{"campaign_description":"beach drones"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if f.campaigns.description != "beach drones" || f.campaigns.max != 3 {
		t.Fatalf("campaign got %q/%d", f.campaigns.description, f.campaigns.max)
	}
	if body["message"] != "Successfully crawled 1 organizations" {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestStartCrawlWithExplicitURLs(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/crawl", `{"urls":["https://a.org","https://b.org"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if len(f.campaigns.urls) != 2 || len(body["results"].([]any)) != 2 {
		t.Fatalf("urls = %v, body = %v", f.campaigns.urls, body)
	}
}

func TestStartCrawlRejectsBadJSON(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/crawl", `{"max_organizations":"many"}`)
	if w.Code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
}

func TestScoreProspects(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/score", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	scored := body["scored_prospects"].([]any)
	if len(scored) != 1 || scored[0].(map[string]any)["recommendation"] != "MEDIUM_PRIORITY" {
		t.Fatalf("scored = %v", scored)
	}

	f.scorer.err = errors.New("model broken")
	w, body = do(t, f.router, http.MethodPost, "/api/donor/score", "")
	if w.Code != http.StatusInternalServerError || body["error"] != "model broken" {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
}

func TestScoreProspect(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/score/prospect",
		`{"url":"https://new.org","content_text":"ocean conservation foundation"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if body["result"].(map[string]any)["recommendation"] != "HIGH_PRIORITY" {
		t.Fatalf("body = %v", body)
	}

	w, body = do(t, f.router, http.MethodPost, "/api/donor/score/prospect", `{"url":"https://reef.org"}`)
	if w.Code != http.StatusOK || body["scored_prospect"].(map[string]any)["url"] != "https://reef.org" {
		t.Fatalf("stored: status = %d, body = %v", w.Code, body)
	}

	w, _ = do(t, f.router, http.MethodPost, "/api/donor/score/prospect", `{"url":"https://missing.org"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d", w.Code)
	}

	w, _ = do(t, f.router, http.MethodPost, "/api/donor/score/prospect", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty: status = %d", w.Code)
	}
}

func TestRetrainModel(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodPost, "/api/donor/model/retrain", "")
	if w.Code != http.StatusOK || body["model_id"] != "model-1" || body["rows"] != float64(7) {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
}

func TestDashboardStats(t *testing.T) {
	f := setupRouter(t)

	w, body := do(t, f.router, http.MethodGet, "/api/donor/dashboard/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	stats := body["stats"].(map[string]any)
	if stats["total_prospects"] != float64(2) || stats["high_priority_prospects"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}
	if stats["average_score"] != 0.567 {
		t.Fatalf("average_score = %v, want 0.567", stats["average_score"])
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	f := setupRouter(t)

	do(t, f.router, http.MethodGet, "/health", "")
	w, _ := do(t, f.router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/health"`) {
		t.Fatalf("metrics missing /health route:\n%s", w.Body.String())
	}
}

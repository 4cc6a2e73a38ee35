package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ProspectScanner/internal/config"
	"ProspectScanner/internal/infrastructure/storage"
	"ProspectScanner/internal/logging"
)

func TestNewWithDefaultsUsesMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.LLM.APIKey = ""

	a, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if _, ok := a.Repository().(*storage.MemoryRepository); !ok {
		t.Fatalf("repository = %T, want in-memory", a.Repository())
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/donor/dashboard/stats", http.NoBody)
	a.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.LLM.Provider = "mystery"

	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestSchedulerValidatesCron(t *testing.T) {
	cfg := config.Default()
	a, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if _, err := a.Scheduler(); err != nil {
		t.Fatalf("default schedule rejected: %v", err)
	}

	a.cfg.Scheduler.CronExpression = "whenever"
	if _, err := a.Scheduler(); err == nil {
		t.Fatal("expected invalid cron error")
	}
}

package studiod

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"studiod/internal/registry"
)

func testConfig() Config {
	cfg, _ := LoadConfig("")
	cfg.Log.Level = "error"
	cfg.Log.Color = false
	cfg.Store.Type = "sqlite" // in-memory
	return cfg
}

func TestNewWiresDefaultServices(t *testing.T) {
	orch, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	views := orch.Status()
	for _, name := range []string{registry.SelfName, "lmStudio", "comfyUI", "fileProcessor"} {
		if _, ok := views[name]; !ok {
			t.Fatalf("%s missing from status table", name)
		}
	}
	if views[registry.SelfName].Status != registry.StatusRunning {
		t.Fatalf("self = %+v", views[registry.SelfName])
	}
}

func TestHandlerServesStatus(t *testing.T) {
	orch, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := httptest.NewRecorder()
	orch.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var views map[string]PublicView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("views = %d, want 4", len(views))
	}
}

func TestNewRejectsInvalidServiceTable(t *testing.T) {
	cfg := testConfig()
	cfg.Services[0].Name = registry.SelfName
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for reserved service name")
	}
}

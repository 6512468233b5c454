package mobilebridge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/go-tor/pkg/config"
	"github.com/opd-ai/go-tor/pkg/facade"
	"github.com/opd-ai/go-tor/pkg/geoip"
	"github.com/opd-ai/go-tor/pkg/logger"
	"github.com/opd-ai/go-tor/pkg/session"
	"github.com/opd-ai/go-tor/pkg/torclient"
)

func newTestServer(t *testing.T) (*Server, *facade.Facade) {
	t.Helper()
	base := config.DefaultConfig()
	geo := geoip.NewResolver("", geoip.DefaultCountryCacheCap)
	log := logger.NewDefault()
	mock := torclient.NewMock()
	mgr := session.NewManager(func() torclient.Capability { return mock }, geo, base, log)

	f := facade.New(mgr, facade.Config{
		LogFilePath:     filepath.Join(t.TempDir(), "torwell.log"),
		MaxLogLines:     100,
		SessionTokenTTL: time.Minute,
	}, log, nil)

	return New(f, log), f
}

func TestStatusReportsDisconnectedByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "DISCONNECTED" {
		t.Fatalf("body = %q, want DISCONNECTED", got)
	}
}

func TestWorkersRejectsInvalidToken(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(workersRequest{Workers: []string{"https://example.invalid"}, Token: "bogus"})
	req := httptest.NewRequest(http.MethodPost, "/workers", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want 401", rec.Code)
	}
}

func TestWorkersAcceptsValidToken(t *testing.T) {
	srv, f := newTestServer(t)
	token := f.Tokens().CreateSession()

	body, _ := json.Marshal(workersRequest{Workers: []string{"https://worker-a.example"}, Token: token})
	req := httptest.NewRequest(http.MethodPost, "/workers", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status code = %d, want 204", rec.Code)
	}
	if got := srv.Workers(); len(got) != 1 || got[0] != "https://worker-a.example" {
		t.Fatalf("Workers() = %v, want one registered worker", got)
	}
}

func TestValidateReflectsTokenState(t *testing.T) {
	srv, f := newTestServer(t)
	token := f.Tokens().CreateSession()

	req := httptest.NewRequest(http.MethodGet, "/validate?token="+token, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var valid bool
	if err := json.Unmarshal(rec.Body.Bytes(), &valid); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !valid {
		t.Fatal("expected freshly created token to validate")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/validate?token=not-a-real-token", nil)
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req2)

	var invalid bool
	if err := json.Unmarshal(rec2.Body.Bytes(), &invalid); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if invalid {
		t.Fatal("expected unknown token to fail validation")
	}
}

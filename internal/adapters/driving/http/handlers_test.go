package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shiurlab/shiur-core/internal/adapters/driven/auth"
	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// stubGuideService is a minimal driving.GuideService for handler tests.
type stubGuideService struct {
	result *domain.GuideResult
	rec    *domain.CanonicalGuideRecord
	chunks []domain.GuideChunk

	cancelled []string
}

func (s *stubGuideService) Generate(ctx context.Context, req domain.GuideRequest) (*domain.GuideResult, error) {
	return s.result, nil
}

func (s *stubGuideService) Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, []domain.GuideChunk, error) {
	if s.rec == nil {
		return nil, nil, domain.ErrNotFound
	}
	return s.rec, s.chunks, nil
}

func (s *stubGuideService) Progress(ctx context.Context, fingerprint string) (int, int, error) {
	return 2, 5, nil
}

func (s *stubGuideService) Cancel(ctx context.Context, fingerprint string) error {
	s.cancelled = append(s.cancelled, fingerprint)
	return nil
}

func newTestServer(svc *stubGuideService) (*Server, string) {
	adapter := auth.NewAdapter("test-secret")
	token, _ := adapter.GenerateToken("test-client", time.Hour)
	server := NewServer(DefaultConfig(), svc, nil, adapter, nil, nil)
	return server, token
}

func TestHandleGenerateGuide(t *testing.T) {
	svc := &stubGuideService{
		result: &domain.GuideResult{Success: true, Guide: &domain.CanonicalGuideRecord{Status: domain.GuideStatusReady}},
	}
	server, token := newTestServer(svc)

	body, _ := json.Marshal(map[string]any{
		"section":   "Orach Chayim",
		"chapter":   24,
		"paragraph": 1,
		"corpora":   []string{"shulchan_arukh", "tur"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/guides", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp generateGuideResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Fingerprint == "" || resp.Result == nil || !resp.Result.Success {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleGenerateGuide_Unauthorized(t *testing.T) {
	server, _ := newTestServer(&stubGuideService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guides", bytes.NewReader([]byte("{}")))
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rw.Code)
	}
}

func TestHandleGenerateGuide_BadSection(t *testing.T) {
	server, token := newTestServer(&stubGuideService{})

	body, _ := json.Marshal(map[string]any{"section": "Bavli", "chapter": 2})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/guides", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rw.Code)
	}
}

func TestHandleGetGuide_NotFound(t *testing.T) {
	server, token := newTestServer(&stubGuideService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guides/deadbeef", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rw.Code)
	}
}

func TestHandleProgress(t *testing.T) {
	server, token := newTestServer(&stubGuideService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guides/deadbeef/progress", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp progressResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Done != 2 || resp.Total != 5 {
		t.Errorf("unexpected progress: %+v", resp)
	}
}

func TestHandleCancel(t *testing.T) {
	svc := &stubGuideService{}
	server, token := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guides/deadbeef/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rw.Code)
	}
	if len(svc.cancelled) != 1 || svc.cancelled[0] != "deadbeef" {
		t.Errorf("cancel should reach the service, got %v", svc.cancelled)
	}
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	server, _ := newTestServer(&stubGuideService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rw := httptest.NewRecorder()
	server.router.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rw.Code)
	}
}

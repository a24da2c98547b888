package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// probeMux mounts a Handler over the given checkers on a fresh mux.
func probeMux(checkers ...Checker) *http.ServeMux {
	mux := http.NewServeMux()
	New(checkers...).Register(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, report) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode JSON: %v (body %q)", err, rec.Body.String())
	}
	return rec, rep
}

func TestLiveness_AlwaysOK(t *testing.T) {
	mux := probeMux(Checker{Name: "kvstore", Check: func(context.Context) error {
		return errors.New("store down")
	}})

	rec, rep := get(t, mux, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even with failing dependencies", rec.Code)
	}
	if rep.Status != "ok" {
		t.Errorf("status field = %q, want ok", rep.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadiness_AllDependenciesPass(t *testing.T) {
	mux := probeMux(
		Checker{Name: "kvstore", Check: func(context.Context) error { return nil }},
		Checker{Name: "backend", Check: func(context.Context) error { return nil }},
	)

	rec, rep := get(t, mux, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rep.Checks["kvstore"] != "ok" || rep.Checks["backend"] != "ok" {
		t.Errorf("checks = %v", rep.Checks)
	}
}

func TestReadiness_OneDependencyFails(t *testing.T) {
	mux := probeMux(
		Checker{Name: "kvstore", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "backend", Check: func(context.Context) error { return nil }},
	)

	rec, rep := get(t, mux, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rep.Status != "fail" {
		t.Errorf("status field = %q, want fail", rep.Status)
	}
	if rep.Checks["kvstore"] != "fail: connection refused" {
		t.Errorf("kvstore check = %q", rep.Checks["kvstore"])
	}
	// The passing dependency still shows in the report.
	if rep.Checks["backend"] != "ok" {
		t.Errorf("backend check = %q", rep.Checks["backend"])
	}
}

func TestReadiness_NoCheckers(t *testing.T) {
	rec, rep := get(t, probeMux(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rep.Status != "ok" {
		t.Errorf("status field = %q, want ok", rep.Status)
	}
}

func TestReadiness_ProbesRespectCancellation(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.handleReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

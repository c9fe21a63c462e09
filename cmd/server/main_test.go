package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestEnableCORS(t *testing.T) {
	called := false
	h := enableCORS(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	if rec.Code != http.StatusOK || called {
		t.Fatalf("preflight status=%d called=%v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))
	if rec.Code != http.StatusTeapot || !called {
		t.Fatalf("status=%d called=%v", rec.Code, called)
	}
}

func TestProjectPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "digit.onnx")
	if got := projectPath(abs); got != abs {
		t.Fatalf("projectPath(%q)=%q", abs, got)
	}
	// Tests run from cmd/server, so relative paths resolve to the repo root.
	got := projectPath("models/digit.onnx")
	if filepath.Base(filepath.Dir(got)) != "models" || filepath.Base(filepath.Dir(filepath.Dir(got))) == "server" {
		t.Fatalf("projectPath=%q", got)
	}
}

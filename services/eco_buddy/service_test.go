// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eco_buddy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/config"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/diffview"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/storage/badger"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/telemetry"
)

type fakeAvail struct{ down atomic.Bool }

func (f *fakeAvail) Up() bool { return !f.down.Load() }

type apiFixture struct {
	router  *gin.Engine
	backend *backend.Mock
	cache   *cache.Cache
	avail   *fakeAvail
	root    string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	root := t.TempDir()
	cfg := config.Default()
	cfg.WorkspaceRoot = root

	mockBackend := &backend.Mock{}
	editor := &diffview.MockEditor{}
	tracker := diffview.NewTracker(db, editor, nil)
	fileCache := cache.New(db, nil)
	avail := &fakeAvail{}
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	controller := session.NewController(root, mockBackend, fileCache, tracker, avail, metrics, nil)

	svc, err := NewService(cfg, fileCache, mockBackend, controller, tracker, avail, metrics, nil)
	require.NoError(t, err)

	router := gin.New()
	svc.RegisterRoutes(router)

	// Registered after the store's cleanup so it runs first: the request
	// goroutine must be gone before badger closes.
	t.Cleanup(controller.Close)

	return &apiFixture{
		router:  router,
		backend: mockBackend,
		cache:   fileCache,
		avail:   avail,
		root:    root,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// doCtx is do with a caller-controlled request context, for tests that
// cancel mid-flight the way a real HTTP client does.
func (f *apiFixture) doCtx(t *testing.T, ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(data)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// TestDetectEndpoint verifies detection populates the cache and returns
// the record.
func TestDetectEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.py"), []byte("x = 1\n"), 0640))

	f.backend.DetectSmellsFunc = func(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error) {
		assert.Equal(t, smells.AllRules(), enabled)
		return []smells.Smell{{
			Rule:        smells.RuleLongLambda,
			Message:     "lambda too long",
			Occurrences: []smells.Occurrence{{StartLine: 1, StartCol: 1}},
		}}, nil
	}

	rec := f.do(t, http.MethodPost, "/v1/ecobuddy/detect", gin.H{"path": "a.py"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record cache.FileRecord
	decodeBody(t, rec, &record)
	assert.Equal(t, "a.py", record.Path)
	require.Len(t, record.Smells, 1)
	assert.NotEmpty(t, record.Smells[0].ID)
	assert.Equal(t, cache.Fresh, record.Freshness)

	// The record is queryable.
	rec = f.do(t, http.MethodGet, "/v1/ecobuddy/smells?path=a.py", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestDetectMissingFile verifies a filesystem failure surfaces as an
// internal error, not a panic.
func TestDetectMissingFile(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/ecobuddy/detect", gin.H{"path": "no-such.py"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &payload)
	assert.Equal(t, "internal", payload.Code)
}

// TestRefactorErrorMapping verifies sentinel errors map to stable HTTP
// codes the extension can switch on.
func TestRefactorErrorMapping(t *testing.T) {
	t.Run("unknown smell is 404", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/v1/ecobuddy/refactor", gin.H{"smell_id": "gone"})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var payload struct {
			Code string `json:"code"`
		}
		decodeBody(t, rec, &payload)
		assert.Equal(t, "smell_not_found", payload.Code)
	})

	t.Run("server down is 503", func(t *testing.T) {
		f := newAPIFixture(t)
		f.avail.down.Store(true)
		rec := f.do(t, http.MethodPost, "/v1/ecobuddy/refactor", gin.H{"smell_id": "any"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("no reviewable session is 409", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/v1/ecobuddy/refactor/accept", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = f.do(t, http.MethodPost, "/v1/ecobuddy/refactor/reject", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

// TestRefactorFlowOverHTTP drives request, review, and accept through
// the API.
func TestRefactorFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	content := "x = ''\nfor s in p:\n    x += s\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.py"), []byte(content), 0640))

	s := smells.Smell{
		Rule:        smells.RuleStringConcatInLoop,
		Message:     "concat in loop",
		Occurrences: []smells.Occurrence{{StartLine: 3, StartCol: 5}},
	}
	require.NoError(t, smells.Normalize(&s, "a.py"))
	require.NoError(t, f.cache.Upsert(context.Background(), "a.py",
		cache.Fingerprint([]byte(content)), []smells.Smell{s}))

	tempDir, err := os.MkdirTemp("", "eco-http-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })
	refactored := filepath.Join(tempDir, "a.py")
	require.NoError(t, os.WriteFile(refactored, []byte("x = ''.join(p)\n"), 0640))

	f.backend.RefactorFunc = func(ctx context.Context, sourceDir string, smell smells.Smell) (*backend.RefactoredData, error) {
		return &backend.RefactoredData{
			TargetFile:  backend.FilePair{Original: "a.py", Refactored: refactored},
			EnergySaved: 0.5,
			TempDir:     tempDir,
		}, nil
	}

	rec := f.do(t, http.MethodPost, "/v1/ecobuddy/refactor", gin.H{"smell_id": s.ID})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// Wait for review state via the status endpoint.
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/v1/ecobuddy/status?path=a.py", nil)
		var payload struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &payload)
		return payload.Status == "awaiting_review"
	}, 2*time.Second, 5*time.Millisecond)

	// Unified diff preview is available during review.
	rec = f.do(t, http.MethodGet, "/v1/ecobuddy/refactor/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview struct {
		Previews []struct {
			Original string `json:"original"`
			Diff     string `json:"diff"`
		} `json:"previews"`
	}
	decodeBody(t, rec, &preview)
	require.Len(t, preview.Previews, 1)
	assert.Contains(t, preview.Previews[0].Diff, "+x = ''.join(p)")

	rec = f.do(t, http.MethodPost, "/v1/ecobuddy/refactor/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := os.ReadFile(filepath.Join(f.root, "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = ''.join(p)\n", string(got))

	// Post-commit, the file shows outdated until re-detection.
	rec = f.do(t, http.MethodGet, "/v1/ecobuddy/status?path=a.py", nil)
	var payload struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &payload)
	assert.Equal(t, "outdated", payload.Status)
}

// TestRefactorSurvivesRequestCancellation verifies the session keeps
// running after the refactor request's own context is cancelled: the
// extension fires the request and moves on, it does not hold the
// connection open for the duration of the backend call.
func TestRefactorSurvivesRequestCancellation(t *testing.T) {
	f := newAPIFixture(t)

	content := "x = ''\nfor s in p:\n    x += s\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.py"), []byte(content), 0640))

	s := smells.Smell{
		Rule:        smells.RuleStringConcatInLoop,
		Message:     "concat in loop",
		Occurrences: []smells.Occurrence{{StartLine: 3, StartCol: 5}},
	}
	require.NoError(t, smells.Normalize(&s, "a.py"))
	require.NoError(t, f.cache.Upsert(context.Background(), "a.py",
		cache.Fingerprint([]byte(content)), []smells.Smell{s}))

	tempDir, err := os.MkdirTemp("", "eco-http-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })
	refactored := filepath.Join(tempDir, "a.py")
	require.NoError(t, os.WriteFile(refactored, []byte("x = ''.join(p)\n"), 0640))

	proceed := make(chan struct{})
	f.backend.RefactorFunc = func(ctx context.Context, sourceDir string, smell smells.Smell) (*backend.RefactoredData, error) {
		// The backend answers only after the caller has hung up.
		<-proceed
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &backend.RefactoredData{
			TargetFile:  backend.FilePair{Original: "a.py", Refactored: refactored},
			EnergySaved: 0.5,
			TempDir:     tempDir,
		}, nil
	}

	reqCtx, cancel := context.WithCancel(context.Background())
	rec := f.doCtx(t, reqCtx, http.MethodPost, "/v1/ecobuddy/refactor", gin.H{"smell_id": s.ID})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	cancel()
	close(proceed)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/v1/ecobuddy/status?path=a.py", nil)
		var payload struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &payload)
		return payload.Status == "awaiting_review"
	}, 2*time.Second, 5*time.Millisecond)
}

// TestDetectNormalizesAbsolutePaths verifies detection keys the cache
// by workspace-relative path even when the editor sends an absolute
// one, so save events land on the same record.
func TestDetectNormalizesAbsolutePaths(t *testing.T) {
	f := newAPIFixture(t)
	abs := filepath.Join(f.root, "pkg", "a.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0750))
	require.NoError(t, os.WriteFile(abs, []byte("x = 1\n"), 0640))

	f.backend.DetectSmellsFunc = func(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error) {
		return []smells.Smell{{
			Rule:        smells.RuleUseAGenerator,
			Message:     "use a generator",
			Occurrences: []smells.Occurrence{{StartLine: 1, StartCol: 1}},
		}}, nil
	}

	rec := f.do(t, http.MethodPost, "/v1/ecobuddy/detect", gin.H{"path": abs})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record cache.FileRecord
	decodeBody(t, rec, &record)
	assert.Equal(t, filepath.Join("pkg", "a.py"), record.Path)

	// The record is reachable under both forms.
	_, err := f.cache.Get(filepath.Join("pkg", "a.py"))
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/v1/ecobuddy/status?path="+abs, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &payload)
	assert.Equal(t, "has_smells", payload.Status)
}

// TestStatusEndpoint covers projection inputs over HTTP.
func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("requires path", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/ecobuddy/status", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown file is clean", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/ecobuddy/status?path=new.py", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var payload struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &payload)
		assert.Equal(t, "clean", payload.Status)
	})

	t.Run("server down dominates", func(t *testing.T) {
		f.avail.down.Store(true)
		defer f.avail.down.Store(false)

		rec := f.do(t, http.MethodGet, "/v1/ecobuddy/status?path=new.py", nil)
		var payload struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &payload)
		assert.Equal(t, "server_down", payload.Status)
	})
}

// TestCacheWipe verifies selective and full wipes.
func TestCacheWipe(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	for _, rel := range []string{"a.py", "b.py"} {
		s := smells.Smell{
			Rule:        smells.RuleUseAGenerator,
			Occurrences: []smells.Occurrence{{StartLine: 1, StartCol: 1}},
		}
		require.NoError(t, smells.Normalize(&s, rel))
		require.NoError(t, f.cache.Upsert(ctx, rel, "H", []smells.Smell{s}))
	}

	rec := f.do(t, http.MethodPost, "/v1/ecobuddy/cache/wipe", gin.H{"path": "a.py"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := f.cache.Get("a.py")
	assert.ErrorIs(t, err, cache.ErrRecordNotFound)
	_, err = f.cache.Get("b.py")
	assert.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/v1/ecobuddy/cache/wipe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.cache.Paths())
}

// TestHealthEndpoint reports backend reachability.
func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/ecobuddy/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status    string `json:"status"`
		BackendUp bool   `json:"backend_up"`
	}
	decodeBody(t, rec, &payload)
	assert.Equal(t, "ok", payload.Status)
	assert.True(t, payload.BackendUp)
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-meeg/report"
)

func testServer(t *testing.T) (*Server, *report.Report) {
	t.Helper()

	rep := report.New("Pipeline Run")
	_, err := rep.AddMarkdown("Overview", "All channels healthy.", "qc")
	require.NoError(t, err)
	_, err = rep.AddMarkdown("Spectra", "See figures.", "spectrum")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(rep, logger), rep
}

func TestIndexServesHTML(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Pipeline Run")
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSectionListAndFilter(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sections", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var all []report.Section
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/sections?tag=qc", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var filtered []report.Section
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Overview", filtered[0].Title)
}

func TestSectionByID(t *testing.T) {
	s, rep := testServer(t)
	id := rep.Sections()[0].ID

	req := httptest.NewRequest(http.MethodGet, "/api/sections/"+id, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		ID   string `json:"id"`
		HTML string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Contains(t, got.HTML, "healthy")

	req = httptest.NewRequest(http.MethodGet, "/api/sections/unknown", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTags(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var tags []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	assert.Equal(t, []string{"qc", "spectrum"}, tags)
}

func TestListenAndServeShutsDown(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seedBlob(t *testing.T, store BlobStore, visitID, fileName, contentType, content string) *BlobMetadata {
	t.Helper()
	meta := BlobMetadata{
		FileName:    fileName,
		ContentType: contentType,
		VisitID:     visitID,
		CreatedBy:   "test-user",
	}
	result, err := store.Upload(context.Background(), meta, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return result
}

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestInMemoryBlobStore_Upload(t *testing.T) {
	store := NewInMemoryBlobStore()
	result := seedBlob(t, store, "v1", "odontograma.pdf", ContentTypePDF, "%PDF-1.3")

	if result.ID == "" {
		t.Error("expected non-empty ID")
	}
	if result.Size != int64(len("%PDF-1.3")) {
		t.Errorf("expected size %d, got %d", len("%PDF-1.3"), result.Size)
	}
	if result.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestInMemoryBlobStore_Upload_Validation(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	if _, err := store.Upload(ctx, BlobMetadata{ContentType: ContentTypePDF}, strings.NewReader("x")); err != ErrMissingFileName {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
	if _, err := store.Upload(ctx, BlobMetadata{FileName: "a.txt", ContentType: "text/plain"}, strings.NewReader("x")); err != ErrInvalidContentType {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestInMemoryBlobStore_Upload_FileTooLarge(t *testing.T) {
	store := NewInMemoryBlobStore()
	big := io.LimitReader(zeroReader{}, MaxFileSize+1)
	_, err := store.Upload(context.Background(), BlobMetadata{FileName: "big.pdf", ContentType: ContentTypePDF}, big)
	if err != ErrFileTooLarge {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestInMemoryBlobStore_Download(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "v1", "odontograma.pdf", ContentTypePDF, "pdf-bytes")

	rc, meta, err := store.Download(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pdf-bytes" {
		t.Errorf("expected pdf-bytes, got %s", data)
	}
	if meta.FileName != "odontograma.pdf" {
		t.Errorf("expected odontograma.pdf, got %s", meta.FileName)
	}
}

func TestInMemoryBlobStore_NotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	if _, _, err := store.Download(ctx, "missing"); err != ErrBlobNotFound {
		t.Errorf("Download: expected ErrBlobNotFound, got %v", err)
	}
	if _, err := store.GetMetadata(ctx, "missing"); err != ErrBlobNotFound {
		t.Errorf("GetMetadata: expected ErrBlobNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != ErrBlobNotFound {
		t.Errorf("Delete: expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploaded := seedBlob(t, store, "v1", "a.pdf", ContentTypePDF, "x")

	if err := store.Delete(context.Background(), uploaded.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetMetadata(context.Background(), uploaded.ID); err != ErrBlobNotFound {
		t.Errorf("expected blob to be gone, got %v", err)
	}
}

func TestInMemoryBlobStore_ListByVisit(t *testing.T) {
	store := NewInMemoryBlobStore()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	seedBlob(t, store, "v1", "first.pdf", ContentTypePDF, "1")
	seedBlob(t, store, "v1", "second.xlsx", ContentTypeXLSX, "2")
	seedBlob(t, store, "v2", "other.pdf", ContentTypePDF, "3")

	items, total, err := store.ListByVisit(context.Background(), "v1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 exports, got %d", total)
	}
	if items[0].FileName != "second.xlsx" {
		t.Errorf("expected newest first, got %s", items[0].FileName)
	}

	page, total, _ := store.ListByVisit(context.Background(), "v1", 1, 1)
	if total != 2 || len(page) != 1 || page[0].FileName != "first.pdf" {
		t.Errorf("unexpected second page %+v", page)
	}
}

func TestInMemoryBlobStore_Prune(t *testing.T) {
	store := NewInMemoryBlobStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	old := seedBlob(t, store, "v1", "old.pdf", ContentTypePDF, "1")

	now = now.Add(2 * time.Hour)
	fresh := seedBlob(t, store, "v1", "fresh.pdf", ContentTypePDF, "2")

	if n := store.Prune(time.Hour); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, err := store.GetMetadata(context.Background(), old.ID); err != ErrBlobNotFound {
		t.Error("expected old export to be pruned")
	}
	if _, err := store.GetMetadata(context.Background(), fresh.ID); err != nil {
		t.Error("expected fresh export to remain")
	}
}

func TestInMemoryBlobStore_SHA256Hash(t *testing.T) {
	store := NewInMemoryBlobStore()
	result := seedBlob(t, store, "v1", "hash.pdf", ContentTypePDF, "hash-me")

	expected := fmt.Sprintf("%x", sha256.Sum256([]byte("hash-me")))
	if result.Hash != expected {
		t.Errorf("expected hash %s, got %s", expected, result.Hash)
	}
}

func TestInMemoryBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryBlobStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta := BlobMetadata{FileName: fmt.Sprintf("f%d.pdf", i), ContentType: ContentTypePDF, VisitID: "v1"}
			if _, err := store.Upload(context.Background(), meta, bytes.NewReader([]byte("x"))); err != nil {
				t.Errorf("upload %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	_, total, _ := store.ListByVisit(context.Background(), "v1", 100, 0)
	if total != 50 {
		t.Errorf("expected 50 exports, got %d", total)
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func newTestHandler() (*InMemoryBlobStore, *echo.Echo) {
	store := NewInMemoryBlobStore()
	e := echo.New()
	NewBlobHandler(store).RegisterRoutes(e.Group(""))
	return store, e
}

func TestBlobHandler_Download(t *testing.T) {
	store, e := newTestHandler()
	uploaded := seedBlob(t, store, "v1", "odontograma.pdf", ContentTypePDF, "download-me")

	req := httptest.NewRequest(http.MethodGet, "/exports/"+uploaded.ID, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypePDF {
		t.Errorf("expected Content-Type=%s, got %s", ContentTypePDF, ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "odontograma.pdf") {
		t.Errorf("expected attachment file name, got %s", cd)
	}
	if rec.Body.String() != "download-me" {
		t.Errorf("expected body download-me, got %s", rec.Body.String())
	}
}

func TestBlobHandler_DownloadNotFound(t *testing.T) {
	_, e := newTestHandler()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestBlobHandler_GetMetadata(t *testing.T) {
	store, e := newTestHandler()
	uploaded := seedBlob(t, store, "v1", "meta.pdf", ContentTypePDF, "content")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/"+uploaded.ID+"/metadata", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatal(err)
	}
	if meta.ID != uploaded.ID || meta.VisitID != "v1" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestBlobHandler_Delete(t *testing.T) {
	store, e := newTestHandler()
	uploaded := seedBlob(t, store, "v1", "del.pdf", ContentTypePDF, "x")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/exports/"+uploaded.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestBlobHandler_ListByVisit(t *testing.T) {
	store, e := newTestHandler()
	seedBlob(t, store, "v1", "a.pdf", ContentTypePDF, "1")
	seedBlob(t, store, "v1", "b.xlsx", ContentTypeXLSX, "2")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visits/v1/exports", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Errorf("expected 2 items, got %d", resp.Total)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visits/empty/exports", nil))
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("expected empty items array, got %s", rec.Body.String())
	}
}

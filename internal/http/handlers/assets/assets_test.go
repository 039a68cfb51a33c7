package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/catalog"
	"github.com/princekumarofficial/catalog-service/internal/http/middleware"
	"github.com/princekumarofficial/catalog-service/internal/storage/memory"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
	"github.com/princekumarofficial/catalog-service/internal/utils/jwt"
)

const secret = "test-secret"

type memBlobs struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
	fail    bool
}

func (b *memBlobs) Put(_ context.Context, in blobstore.PutInput) (*blobstore.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errors.New("store unavailable")
	}
	b.objects[in.Key] = in.Payload.ContentType
	return &blobstore.Object{ExternalID: in.Key, URL: "https://blobs.test/" + in.Key, Duration: 9}, nil
}

func (b *memBlobs) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, id)
	return nil
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, tasks.Task) {}

type testServer struct {
	mux   *http.ServeMux
	blobs *memBlobs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.New()
	if err := store.CreateOwner(context.Background(), &users.Owner{ID: "owner-1", Username: "alice"}); err != nil {
		t.Fatalf("Failed to seed owner: %v", err)
	}

	blobs := &memBlobs{objects: make(map[string]string)}
	limits := catalog.DefaultLimits()
	h := NewAssetHandlers(
		catalog.NewIngestor(store, blobs, nopDispatcher{}, limits, log),
		catalog.NewEngine(store, nopDispatcher{}, log),
		limits, log)

	auth := middleware.AuthMiddleware(secret)
	optional := middleware.OptionalAuthMiddleware(secret)
	mux := http.NewServeMux()
	mux.Handle("POST /assets", auth(h.Create()))
	mux.Handle("GET /assets", h.List())
	mux.Handle("GET /assets/{id}", optional(h.Get()))
	mux.Handle("PUT /assets/{id}", auth(h.Update()))
	mux.Handle("DELETE /assets/{id}", auth(h.Delete()))
	mux.Handle("PATCH /assets/{id}/publish", auth(h.Publish()))
	mux.Handle("GET /owners/{id}/assets", optional(h.ListByOwner()))
	return &testServer{mux: mux, blobs: blobs}
}

type filePart struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.contentType != "" {
			hdr.Set("Content-Type", f.contentType)
		}
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		w.Write(f.data)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

func (s *testServer) do(t *testing.T, method, path, user string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		token, err := jwt.GenerateToken(user, secret, time.Minute)
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return env
}

func (s *testServer) create(t *testing.T, published string) string {
	t.Helper()
	body, ct := multipartBody(t,
		map[string]string{"title": "Sunset clip", "description": "A sunset over the water.", "isPublished": published},
		filePart{"video", "clip.mp4", "video/mp4", make([]byte, 128)},
		filePart{"thumbnail", "thumb.png", "", pngBytes()},
	)
	rec := s.do(t, http.MethodPost, "/assets", "owner-1", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID          string `json:"id"`
		IsPublished bool   `json:"isPublished"`
	}
	decode(t, rec, &created)
	return created.ID
}

func TestCreate(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, "true")
	if id == "" {
		t.Fatal("Expected an asset id")
	}

	// thumbnail was sent without a content type and must have been sniffed
	var sniffed bool
	for _, ct := range s.blobs.objects {
		if ct == "image/png" {
			sniffed = true
		}
	}
	if !sniffed {
		t.Fatalf("Expected sniffed image/png thumbnail, got %v", s.blobs.objects)
	}
}

func TestCreate_ValidationAndAuth(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartBody(t,
		map[string]string{"title": "Hi", "description": "A sunset over the water."},
		filePart{"video", "clip.mp4", "video/mp4", make([]byte, 16)},
		filePart{"thumbnail", "thumb.png", "image/png", pngBytes()},
	)
	rec := s.do(t, http.MethodPost, "/assets", "owner-1", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	var fields map[string]string
	decode(t, rec, &fields)
	if fields["title"] != "min=3" {
		t.Fatalf("Expected title min=3 to be reported, got %v", fields)
	}
	if len(s.blobs.objects) != 0 {
		t.Fatal("Expected nothing stored")
	}

	if rec := s.do(t, http.MethodPost, "/assets", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
}

func TestCreate_UploadFailureIsGeneric500(t *testing.T) {
	s := newTestServer(t)
	s.blobs.fail = true

	body, ct := multipartBody(t,
		map[string]string{"title": "Sunset clip", "description": "A sunset over the water."},
		filePart{"video", "clip.mp4", "video/mp4", make([]byte, 16)},
		filePart{"thumbnail", "thumb.png", "image/png", pngBytes()},
	)
	rec := s.do(t, http.MethodPost, "/assets", "owner-1", body, ct)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	env := decode(t, rec, nil)
	if env.Error != "failed to upload media" {
		t.Fatalf("Expected generic message, got %q", env.Error)
	}
}

func TestGetAndVisibility(t *testing.T) {
	s := newTestServer(t)
	draft := s.create(t, "")

	if rec := s.do(t, http.MethodGet, "/assets/"+draft, "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("Expected anonymous 404 on a draft, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/assets/"+draft, "owner-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected owner to read draft, got %d", rec.Code)
	}
	var detail struct {
		Views     int64 `json:"views"`
		LikeCount int64 `json:"likeCount"`
	}
	decode(t, rec, &detail)
	if detail.Views != 1 {
		t.Fatalf("Expected views 1, got %d", detail.Views)
	}

	rec = s.do(t, http.MethodGet, "/owners/owner-1/assets", "", nil, "")
	var page struct {
		TotalCount int64 `json:"totalCount"`
	}
	decode(t, rec, &page)
	if page.TotalCount != 0 {
		t.Fatalf("Expected drafts hidden from others, got %d", page.TotalCount)
	}

	rec = s.do(t, http.MethodGet, "/owners/owner-1/assets", "owner-1", nil, "")
	decode(t, rec, &page)
	if page.TotalCount != 1 {
		t.Fatalf("Expected owner to see the draft, got %d", page.TotalCount)
	}
}

func TestPublishAndList(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, "")

	if rec := s.do(t, http.MethodPatch, "/assets/"+id+"/publish", "intruder", nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPatch, "/assets/"+id+"/publish", "owner-1", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/assets?limit=500&sortBy=bogus", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var page struct {
		Items      []json.RawMessage `json:"items"`
		TotalCount int64             `json:"totalCount"`
		Limit      int               `json:"limit"`
	}
	decode(t, rec, &page)
	if page.TotalCount != 1 || len(page.Items) != 1 || page.Limit != 100 {
		t.Fatalf("Unexpected page: %+v", page)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, "true")

	body, ct := multipartBody(t, map[string]string{"title": "Renamed clip"})
	rec := s.do(t, http.MethodPut, "/assets/"+id, "owner-1", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Title string `json:"title"`
	}
	decode(t, rec, &updated)
	if updated.Title != "Renamed clip" {
		t.Fatalf("Expected new title, got %q", updated.Title)
	}

	if rec := s.do(t, http.MethodDelete, "/assets/"+id, "intruder", nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, "/assets/"+id, "owner-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var deleted DeleteResponse
	decode(t, rec, &deleted)
	if deleted.DeletedID != id || len(s.blobs.objects) != 0 {
		t.Fatalf("Expected asset and blobs gone, got %+v, %d objects", deleted, len(s.blobs.objects))
	}
	if rec := s.do(t, http.MethodDelete, "/assets/"+id, "owner-1", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 on second delete, got %d", rec.Code)
	}
}

func TestSpoolRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	s := newTestServer(t)
	s.create(t, "")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Expected spooled uploads removed, found %d files", len(entries))
	}
}

func TestFormReleaseLogsFailures(t *testing.T) {
	// a non-empty directory cannot be removed with os.Remove
	stuck := filepath.Join(t.TempDir(), "stuck")
	if err := os.MkdirAll(filepath.Join(stuck, "child"), 0o700); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	gone := filepath.Join(t.TempDir(), "thumb")
	if err := os.WriteFile(gone, []byte("x"), 0o600); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	f := &form{
		files: map[blobstore.Slot]*blobstore.Payload{
			blobstore.SlotVideo:     {Path: stuck},
			blobstore.SlotThumbnail: {Path: gone},
		},
		log: zap.New(core),
	}
	f.release()

	entries := logs.FilterMessage("failed to remove spooled upload").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one logged release failure, got %d", len(entries))
	}
	if slot := entries[0].ContextMap()["slot"]; slot != string(blobstore.SlotVideo) {
		t.Fatalf("Expected failure logged for the video slot, got %v", slot)
	}
	if _, err := os.Stat(gone); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Expected the removable payload to be gone")
	}
}

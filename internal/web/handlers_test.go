package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/ops"
	"github.com/onionskin/onion/internal/video"
)

type stubEncoder struct{}

func (stubEncoder) Encode(_ context.Context, images [][]byte, frameRate int) (*video.Artifact, error) {
	return &video.Artifact{ContentType: "video/webm", Data: []byte("webm-bytes"), Frames: len(images), FrameRate: frameRate}, nil
}

type dataResolver struct{}

func (dataResolver) Resolve(_ context.Context, ref string) ([]byte, error) {
	_, data, err := model.DecodeDataURI(ref)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch %s", ref)
	}
	return data, nil
}

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	editor, err := ops.NewEditor(database, cfg, ops.Options{
		Logger:   log.New(io.Discard, "", 0),
		Encoder:  stubEncoder{},
		Resolver: dataResolver{},
	})
	if err != nil {
		t.Fatalf("ops.NewEditor: %v", err)
	}
	t.Cleanup(editor.Close)

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		editor:   editor,
		db:       database,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, "test"),
	}
}

// seedProject creates a simple project with n frames and returns its id.
func seedProject(t *testing.T, h *Handlers, title string, n int) string {
	t.Helper()
	ctx := context.Background()
	out, err := ops.NewProject(ctx, h.db, ops.NewProjectInput{Title: &title})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if _, err := h.editor.LoadProject(ctx, ops.LoadProjectInput{ProjectID: out.ID}); err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < n; i++ {
		img := model.EncodeDataURI("image/webp", []byte(fmt.Sprintf("still-%d", i)))
		if _, err := h.editor.AddFrame(img); err != nil {
			t.Fatalf("add frame: %v", err)
		}
	}
	if err := h.editor.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return out.ID
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedProject(t, h, "Brick Heist", 1)

	req := httptest.NewRequest("GET", "/projects", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Brick Heist") {
		t.Error("expected project title in response")
	}
	if !strings.Contains(body, "Examples") || !strings.Contains(body, "/projects/duplo-demo") {
		t.Error("expected example projects in response")
	}
	if !strings.Contains(body, `src="data:image/webp;base64,`) {
		t.Error("expected embedded thumbnail")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/projects", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	var resp ops.ListProjectsOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Projects) != 0 || len(resp.Examples) != 2 {
		t.Errorf("projects = %d, examples = %d", len(resp.Projects), len(resp.Examples))
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/projects", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("htmx request should not include the layout")
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Brick Heist", 3)

	req := httptest.NewRequest("GET", "/projects/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Count(body, `alt="Frame `) != 3 {
		t.Error("expected three frame tiles")
	}
	if !strings.Contains(body, "0.6 s") {
		t.Error("expected total duration at 5 fps")
	}
	if !strings.Contains(body, "/projects/"+id+"/preview") {
		t.Error("expected preview link")
	}
}

func TestHandleDetail_StoryboardScene(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/projects/storyboard-demo?scene=1", nil)
	req.SetPathValue("id", "storyboard-demo")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h2>Storyboard</h2>") || !strings.Contains(body, "Scene 2") {
		t.Error("expected storyboard sheet")
	}
	if !strings.Contains(body, "/projects/storyboard-demo/preview?scene=1") {
		t.Error("expected scene preview link")
	}
}

func TestHandleDetail_Errors(t *testing.T) {
	h := setupTest(t)

	tests := []struct {
		name   string
		target string
		id     string
		status int
	}{
		{"not found", "/projects/nope", "nope", http.StatusNotFound},
		{"bad scene", "/projects/duplo-demo?scene=x", "duplo-demo", http.StatusBadRequest},
		{"scene out of range", "/projects/duplo-demo?scene=4", "duplo-demo", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()
			h.HandleDetail(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), "Error") {
				t.Error("expected error page")
			}
		})
	}
}

// --- HandlePreview ---

func TestHandlePreview(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Clip", 2)

	req := httptest.NewRequest("GET", "/projects/"+id+"/preview", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandlePreview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/webm" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "webm-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandlePreview_NothingToRender(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Empty", 0)

	req := httptest.NewRequest("GET", "/projects/"+id+"/preview", nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePreview(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["error"]["code"] != "NO_CONTENT" {
		t.Errorf("code = %v", resp["error"]["code"])
	}
}

// --- HandleExport ---

func TestHandleExport(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Brick Heist", 2)

	req := httptest.NewRequest("GET", "/projects/"+id+"/export", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleExport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Brick%20Heist.export.zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Errorf("entries = %d, want manifest plus two stills", len(zr.File))
	}
}

// --- HandleDelete ---

func TestHandleDelete_HtmxRequest(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Doomed", 0)

	req := httptest.NewRequest("DELETE", "/projects/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/projects" {
		t.Errorf("HX-Redirect = %q, want /projects", got)
	}
	if _, err := db.GetProject(context.Background(), h.db, id); err == nil {
		t.Error("project should be gone")
	}
}

func TestHandleDelete_JSONRequest(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Doomed", 0)

	req := httptest.NewRequest("DELETE", "/projects/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "text/html, application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != id {
		t.Errorf("deleted = %v, want %s", resp["deleted"], id)
	}
}

func TestHandleDelete_DefaultRedirect(t *testing.T) {
	h := setupTest(t)
	id := seedProject(t, h, "Doomed", 0)

	req := httptest.NewRequest("POST", "/projects/"+id+"/delete", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/projects" {
		t.Errorf("Location = %q", loc)
	}
}

// --- Routing ---

func TestNewHandler_Routes(t *testing.T) {
	h := setupTest(t)
	handler := NewHandler(h.editor, h.db, h.cfg, "test")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/projects" {
		t.Errorf("root: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "img-src 'self' data:") {
		t.Errorf("CSP = %q", csp)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("static: status = %d", rec.Code)
	}
}

func TestParseSceneParam(t *testing.T) {
	tests := []struct {
		query   string
		want    *int
		wantErr bool
	}{
		{"", nil, false},
		{"scene=2", intPtr(2), false},
		{"scene=-1", nil, true},
		{"scene=abc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := parseSceneParam(httptest.NewRequest("GET", "/?"+tt.query, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(2.25); got != "2.2 s" && got != "2.3 s" {
		t.Errorf("formatSeconds(2.25) = %q", got)
	}
	if got := formatSeconds(0); got != "0.0 s" {
		t.Errorf("formatSeconds(0) = %q", got)
	}
}

func intPtr(v int) *int { return &v }

package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/export"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/ops"
	"github.com/onionskin/onion/internal/storyboard"
)

// Handlers contains HTTP route handlers for the viewer.
type Handlers struct {
	editor   *ops.Editor
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer

	// mu serializes requests that load a project into the editor.
	mu sync.Mutex
}

// HandleList handles GET /projects.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListProjects(r.Context(), h.db, ops.ListProjectsInput{Thumbnails: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Projects",
			Version: h.renderer.version,
			Nav:     "projects",
		},
		Projects: result.Projects,
		Examples: result.Examples,
	})
}

// HandleDetail handles GET /projects/{id}: frames of the movie, or of one
// scene with ?scene=N, plus the storyboard sheet.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scene, err := parseSceneParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	view, err := h.editor.LoadProject(r.Context(), ops.LoadProjectInput{ProjectID: id, SceneIndex: scene})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, view)
		return
	}

	var sheet template.HTML
	if len(view.Scenes) > 0 {
		out, err := h.editor.Storyboard(storyboard.Options{Images: true})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		// Rendered from escaped markdown by goldmark, which drops raw HTML.
		sheet = template.HTML(out.HTML)
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   projectTitle(&view.Project),
			Version: h.renderer.version,
			Nav:     "projects",
		},
		View:       view,
		Frames:     h.tiles(view.Project.FrameRate),
		Storyboard: sheet,
		PreviewURL: previewURL(id, scene),
	})
}

// HandlePreview handles GET /projects/{id}/preview and streams the encoded video.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scene, err := parseSceneParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.editor.GeneratePreviewVideo(r.Context(), ops.PreviewInput{ProjectID: id, SceneIndex: scene})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.Video.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Video.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Video.Data)
}

// HandleExport handles GET /projects/{id}/export and sends the archive as a download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	dir, err := os.MkdirTemp("", "onion-export-")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	defer os.RemoveAll(dir)

	h.mu.Lock()
	view, err := h.editor.LoadProject(r.Context(), ops.LoadProjectInput{ProjectID: id})
	if err != nil {
		h.mu.Unlock()
		h.renderer.renderError(w, r, err)
		return
	}
	name := export.ArchiveName(projectTitle(&view.Project))
	_, err = h.editor.GenerateExportZip(r.Context(), ops.ExportInput{Path: filepath.Join(dir, name)})
	h.mu.Unlock()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

// HandleDelete handles DELETE /projects/{id} and the form fallback
// POST /projects/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	err := h.editor.DeleteProject(r.Context(), id)
	h.mu.Unlock()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/projects")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"deleted": id})
		return
	}

	http.Redirect(w, r, "/projects", http.StatusFound)
}

// tiles lists the current frames with their stills. Callers hold h.mu.
func (h *Handlers) tiles(frameRate int) []FrameTile {
	frames := h.editor.Selectors().CurrentFrames()
	tiles := make([]FrameTile, len(frames))
	for i, f := range frames {
		tiles[i] = FrameTile{
			Index:   i + 1,
			ID:      f.ID,
			Src:     f.Image,
			Seconds: f.Seconds(frameRate),
			Held:    f.Duration != nil,
		}
	}
	return tiles
}

// parseSceneParam reads the optional ?scene= index.
func parseSceneParam(r *http.Request) (*int, error) {
	s := r.URL.Query().Get("scene")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return nil, errors.NewInvalidRequest("scene must be a non-negative integer")
	}
	return &v, nil
}

func previewURL(id string, scene *int) string {
	u := "/projects/" + url.PathEscape(id) + "/preview"
	if scene != nil {
		u += "?scene=" + strconv.Itoa(*scene)
	}
	return u
}

// projectTitle returns the title, or the default title for untitled projects.
func projectTitle(p *model.Project) string {
	if p.Title != nil && *p.Title != "" {
		return *p.Title
	}
	return model.DefaultTitle
}

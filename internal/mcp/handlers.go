package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/onionskin/onion/internal/capture"
	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/ops"
	"github.com/onionskin/onion/internal/storyboard"
)

// Handlers holds dependencies for MCP tool handlers.
//
// Tool calls are stateless for the client: every call that edits a project
// names it, and the handler loads it into the shared editor first. mu keeps
// one call from loading a different project under another.
type Handlers struct {
	editor *ops.Editor
	db     *sql.DB
	cfg    *config.Config

	mu sync.Mutex
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(editor *ops.Editor, db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{editor: editor, db: db, cfg: cfg}
}

// Request types for each tool

// ProjectRef addresses a project and optionally one of its scenes.
type ProjectRef struct {
	ProjectID  string `json:"project_id"`
	SceneIndex *int   `json:"scene_index,omitempty"`
}

// ListRequest represents the arguments for project_list.
type ListRequest struct {
	Thumbnails bool `json:"thumbnails,omitempty"`
}

// NewRequest represents the arguments for project_new.
type NewRequest struct {
	Storyboard bool    `json:"storyboard,omitempty"`
	Title      *string `json:"title,omitempty"`
}

// TitleRequest represents the arguments for project_title.
type TitleRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

// ToggleRequest represents the arguments for project_toggle.
type ToggleRequest struct {
	ProjectID string `json:"project_id"`
	Setting   string `json:"setting"`
}

// ExportRequest represents the arguments for project_export.
type ExportRequest struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for project_import.
type ImportRequest struct {
	Path  string  `json:"path"`
	Title *string `json:"title,omitempty"`
}

// StoryboardRequest represents the arguments for project_storyboard.
type StoryboardRequest struct {
	ProjectID string `json:"project_id"`
	Images    bool   `json:"images,omitempty"`
}

// FrameAddRequest represents the arguments for frame_add.
type FrameAddRequest struct {
	ProjectRef
	Image string `json:"image,omitempty"`
	Path  string `json:"path,omitempty"`
}

// FrameDurationRequest represents the arguments for frame_duration.
type FrameDurationRequest struct {
	ProjectID string   `json:"project_id"`
	FrameID   string   `json:"frame_id"`
	Seconds   *float64 `json:"seconds,omitempty"`
}

// FrameRemoveRequest represents the arguments for frame_remove.
type FrameRemoveRequest struct {
	ProjectID string   `json:"project_id"`
	FrameIDs  []string `json:"frame_ids"`
}

// SceneImageRequest represents the arguments for scene_image.
type SceneImageRequest struct {
	ProjectID   string  `json:"project_id"`
	SceneIndex  *int    `json:"scene_index"`
	Image       string  `json:"image,omitempty"`
	Path        string  `json:"path,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SceneDeleteRequest represents the arguments for scene_delete.
type SceneDeleteRequest struct {
	ProjectID  string `json:"project_id"`
	SceneIndex *int   `json:"scene_index"`
}

// Response types

// FrameAddResponse lists the frames appended by frame_add.
type FrameAddResponse struct {
	Added    int      `json:"added"`
	FrameIDs []string `json:"frame_ids"`
}

// ToggleResponse reports the new value of a cycled setting.
type ToggleResponse struct {
	Setting string `json:"setting"`
	Value   int    `json:"value"`
}

// RemoveResponse reports how many frames frame_remove deleted.
type RemoveResponse struct {
	Removed int `json:"removed"`
}

// DeleteResponse confirms project_delete.
type DeleteResponse struct {
	Deleted string `json:"deleted"`
}

// Handler implementations

// HandleProjectList handles the project_list tool call.
func (h *Handlers) HandleProjectList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListProjects(ctx, h.db, ops.ListProjectsInput{Thumbnails: input.Thumbnails})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectNew handles the project_new tool call.
func (h *Handlers) HandleProjectNew(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NewProject(ctx, h.db, ops.NewProjectInput{
		HasScenes: input.Storyboard,
		Title:     input.Title,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectShow handles the project_show tool call.
func (h *Handlers) HandleProjectShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.load(ctx, input.ProjectID, input.SceneIndex)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectTitle handles the project_title tool call.
func (h *Handlers) HandleProjectTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TitleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	if err := h.editor.UpdateTitle(input.Title); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.editor.View())
}

// HandleProjectToggle handles the project_toggle tool call.
func (h *Handlers) HandleProjectToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToggleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var toggle func(context.Context) (int, error)
	switch input.Setting {
	case "onion_skin":
		toggle = h.editor.ToggleOnionSkin
	case "frame_rate":
		toggle = h.editor.ToggleFrameRate
	default:
		return errorResult(errors.NewInvalidRequest("setting must be onion_skin or frame_rate")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	value, err := toggle(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ToggleResponse{Setting: input.Setting, Value: value})
}

// HandleProjectDelete handles the project_delete tool call.
func (h *Handlers) HandleProjectDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.editor.DeleteProject(ctx, input.ProjectID); err != nil {
		return errorResult(err), nil
	}

	return successResult(DeleteResponse{Deleted: input.ProjectID})
}

// HandleProjectExport handles the project_export tool call.
func (h *Handlers) HandleProjectExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	result, err := h.editor.GenerateExportZip(ctx, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectImport handles the project_import tool call.
func (h *Handlers) HandleProjectImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportArchive(ctx, h.db, ops.ImportInput{
		Path:  input.Path,
		Title: input.Title,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectStoryboard handles the project_storyboard tool call.
func (h *Handlers) HandleProjectStoryboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StoryboardRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	result, err := h.editor.Storyboard(storyboard.Options{Images: input.Images})
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(result.Markdown), nil
}

// HandleFrameAdd handles the frame_add tool call.
func (h *Handlers) HandleFrameAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FrameAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if (input.Image == "") == (input.Path == "") {
		return errorResult(errors.NewInvalidRequest("exactly one of image or path is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, input.SceneIndex); err != nil {
		return errorResult(err), nil
	}

	resp := FrameAddResponse{FrameIDs: []string{}}
	if input.Image != "" {
		f, err := h.editor.AddFrame(input.Image)
		if err != nil {
			return errorResult(err), nil
		}
		resp.FrameIDs = append(resp.FrameIDs, f.ID)
	} else {
		src, err := capture.NewFileSource(input.Path)
		if err != nil {
			return errorResult(err), nil
		}
		for i := 0; i < src.Len(); i++ {
			f, err := h.editor.Capture(ctx, src)
			if err != nil {
				return errorResult(err), nil
			}
			resp.FrameIDs = append(resp.FrameIDs, f.ID)
		}
	}
	if err := h.editor.Flush(ctx); err != nil {
		return errorResult(err), nil
	}
	resp.Added = len(resp.FrameIDs)

	return successResult(resp)
}

// HandleFrameDuration handles the frame_duration tool call.
func (h *Handlers) HandleFrameDuration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FrameDurationRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.FrameID == "" {
		return errorResult(errors.NewInvalidRequest("frame_id is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	if !h.hasFrame(input.FrameID) {
		return errorResult(errors.NewNotFound("frame", input.FrameID)), nil
	}
	if err := h.editor.SetFrameDuration(ctx, input.FrameID, input.Seconds); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.editor.View())
}

// HandleFrameRemove handles the frame_remove tool call.
func (h *Handlers) HandleFrameRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FrameRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.FrameIDs) == 0 {
		return errorResult(errors.NewInvalidRequest("frame_ids must not be empty")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, nil); err != nil {
		return errorResult(err), nil
	}
	for _, id := range input.FrameIDs {
		if !h.hasFrame(id) {
			return errorResult(errors.NewNotFound("frame", id)), nil
		}
	}
	for _, id := range input.FrameIDs {
		h.editor.SetFrameSelected(id, true)
	}
	n, err := h.editor.RemoveSelectedFrames(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(RemoveResponse{Removed: n})
}

// HandleSceneImage handles the scene_image tool call.
func (h *Handlers) HandleSceneImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SceneImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.SceneIndex == nil {
		return errorResult(errors.NewInvalidRequest("scene_index is required")), nil
	}
	if input.Image != "" && input.Path != "" {
		return errorResult(errors.NewInvalidRequest("image and path are mutually exclusive")), nil
	}
	if input.Image == "" && input.Path == "" && input.Description == nil {
		return errorResult(errors.NewInvalidRequest("one of image, path or description is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.load(ctx, input.ProjectID, input.SceneIndex); err != nil {
		return errorResult(err), nil
	}

	switch {
	case input.Image != "":
		err = h.editor.AddSceneImage(ctx, input.Image)
	case input.Path != "":
		var src *capture.FileSource
		if src, err = capture.NewFileSource(input.Path); err == nil {
			err = h.editor.CaptureSceneImage(ctx, src)
		}
	}
	if err != nil {
		return errorResult(err), nil
	}
	if input.Description != nil {
		if err := h.editor.SetSceneDescription(ctx, strings.TrimSpace(*input.Description)); err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(h.editor.View())
}

// HandleSceneDelete handles the scene_delete tool call.
func (h *Handlers) HandleSceneDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SceneDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.SceneIndex == nil {
		return errorResult(errors.NewInvalidRequest("scene_index is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.editor.DeleteScene(ctx, input.ProjectID, *input.SceneIndex)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVideoRender handles the video_render tool call.
func (h *Handlers) HandleVideoRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.editor.GeneratePreviewVideo(ctx, ops.PreviewInput{
		ProjectID:  input.ProjectID,
		SceneIndex: input.SceneIndex,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// load reads a project into the editor. Callers hold h.mu.
func (h *Handlers) load(ctx context.Context, projectID string, sceneIndex *int) (*ops.ProjectView, error) {
	return h.editor.LoadProject(ctx, ops.LoadProjectInput{
		ProjectID:  projectID,
		SceneIndex: sceneIndex,
	})
}

// hasFrame reports whether the loaded project owns the frame.
func (h *Handlers) hasFrame(frameID string) bool {
	for _, f := range h.editor.State().Frames() {
		if f.ID == frameID {
			return true
		}
	}
	return false
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var oErr *errors.OnionError
	if stderrors.As(err, &oErr) {
		msg := oErr.Message
		// Keep wrapper context such as "frames[2]: ..."
		if full := err.Error(); full != oErr.Error() {
			msg = strings.TrimSuffix(full, oErr.Error()) + oErr.Message
		}
		if oErr.Code == errors.ErrInternal {
			msg = "an internal error occurred"
		}
		errorObj := map[string]any{
			"code":      oErr.Code,
			"message":   msg,
			"status":    oErr.Status,
			"retryable": errors.Retryable(oErr),
		}
		if oErr.Code != errors.ErrInternal && oErr.Details != nil {
			errorObj["details"] = oErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

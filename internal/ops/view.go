package ops

import (
	"github.com/onionskin/onion/internal/assemble"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/state"
)

// FrameView is a frame as listed to clients. Embedded image bytes are not
// repeated; remote references are.
type FrameView struct {
	Index    int      `json:"index"`
	ID       string   `json:"id"`
	Scene    *string  `json:"scene,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Seconds  float64  `json:"seconds"`
	Image    string   `json:"image,omitempty"`
	Selected bool     `json:"selected,omitempty"`
}

// SceneView is one scene of the loaded project.
type SceneView struct {
	Index       int     `json:"index"`
	ID          string  `json:"id"`
	Configured  bool    `json:"configured"`
	Description *string `json:"description,omitempty"`
	Frames      int     `json:"frames"`
	Duration    float64 `json:"duration"`
}

// ProjectView is the session as seen by a client.
type ProjectView struct {
	Project      model.Project `json:"project"`
	Mode         string        `json:"mode"`
	SceneIndex   *int          `json:"scene_index,omitempty"`
	Scenes       []SceneView   `json:"scenes"`
	Frames       []FrameView   `json:"frames"`
	OnionSkins   []string      `json:"onion_skins"`
	ScrollAnchor *int          `json:"scroll_anchor,omitempty"`
	Duration     float64       `json:"duration"`
}

// View renders the loaded project, or nil if none is loaded.
func (e *Editor) View() *ProjectView {
	p := e.state.Project()
	if p == nil {
		return nil
	}
	scenes := e.state.Scenes()
	sceneID := e.state.SceneID()

	v := &ProjectView{
		Project:      *p,
		Mode:         assemble.ModeFor(scenes, sceneID).String(),
		Scenes:       make([]SceneView, 0, len(scenes)),
		Frames:       []FrameView{},
		OnionSkins:   []string{},
		ScrollAnchor: e.sel.ScrollAnchor(),
	}

	for i, sc := range scenes {
		if sceneID != nil && sc.ID == *sceneID {
			v.SceneIndex = &i
		}
		sum := e.sel.SceneSummary(i)
		if sum == nil {
			continue
		}
		v.Scenes = append(v.Scenes, SceneView{
			Index:       i,
			ID:          sc.ID,
			Configured:  sc.Configured(),
			Description: sc.Description,
			Frames:      len(sum.Frames),
			Duration:    sum.Duration,
		})
	}

	current := e.sel.CurrentFrames()
	for i, f := range current {
		fv := FrameView{
			Index:    i,
			ID:       f.ID,
			Scene:    f.Scene,
			Duration: f.Duration,
			Seconds:  f.Seconds(p.FrameRate),
			Selected: e.state.IsSelected(f.ID),
		}
		if model.IsRemote(f.Image) {
			fv.Image = f.Image
		}
		v.Frames = append(v.Frames, fv)
	}
	v.Duration = state.TotalSeconds(current, p.FrameRate)

	for _, f := range e.sel.OnionSkinFrames() {
		v.OnionSkins = append(v.OnionSkins, f.ID)
	}
	return v
}

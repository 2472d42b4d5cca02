// Package state holds the in-memory editing session: the loaded project with
// its scenes and frames, plus ephemeral view state (selection, scroll anchor,
// preview video). Every input carries a version counter that Selectors use to
// decide when to recompute.
package state

import (
	"sync"

	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/video"
)

// Versions are per-input change counters. A counter only ever increases.
type Versions struct {
	Project   uint64
	Scenes    uint64
	Frames    uint64
	Scene     uint64
	Frame     uint64
	Selection uint64
	Scroll    uint64
	Preview   uint64
}

// Loaded is a project snapshot read from the store.
type Loaded struct {
	Project model.Project
	Scenes  []model.Scene

	// Frames are all frames of the project in capture order.
	Frames []model.Frame

	// SceneID is the scene being edited, if any.
	SceneID *string

	// FrameID is the frame being edited, if any.
	FrameID *string
}

// State is the editing session container. The zero value is not usable; call New.
type State struct {
	mu sync.RWMutex

	project  *model.Project
	scenes   []model.Scene
	frames   []model.Frame
	sceneID  *string
	frameID  *string
	selected []string
	scroll   *int
	preview  *video.Artifact

	v Versions
}

// New returns an empty session with no project loaded.
func New() *State {
	return &State{}
}

// Load replaces the session contents with a snapshot.
//
// Reloading the project that is already loaded keeps the selection and scroll
// anchor. Loading a different project clears the selection and anchors the
// frame list at its end.
func (s *State) Load(l Loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()

	same := s.project != nil && s.project.ID == l.Project.ID

	p := l.Project
	s.project = &p
	s.scenes = append([]model.Scene(nil), l.Scenes...)
	s.frames = append([]model.Frame(nil), l.Frames...)
	s.sceneID = copyString(l.SceneID)
	s.frameID = copyString(l.FrameID)
	s.v.Project++
	s.v.Scenes++
	s.v.Frames++
	s.v.Scene++
	s.v.Frame++

	if !same {
		end := len(l.Frames)
		s.scroll = &end
		s.v.Scroll++
		if len(s.selected) > 0 {
			s.selected = nil
			s.v.Selection++
		}
	}
}

// Unload drops the loaded project and all view state.
func (s *State) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = nil
	s.scenes = nil
	s.frames = nil
	s.sceneID = nil
	s.frameID = nil
	s.selected = nil
	s.scroll = nil
	s.preview = nil
	s.v.Project++
	s.v.Scenes++
	s.v.Frames++
	s.v.Scene++
	s.v.Frame++
	s.v.Selection++
	s.v.Scroll++
	s.v.Preview++
}

// Versions returns the current change counters.
func (s *State) Versions() Versions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Project returns a copy of the loaded project, or nil.
func (s *State) Project() *model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return nil
	}
	p := *s.project
	return &p
}

// SetProject replaces the loaded project record.
func (s *State) SetProject(p model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = &p
	s.v.Project++
}

// Scenes returns the project's scenes in canonical order.
func (s *State) Scenes() []model.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Scene(nil), s.scenes...)
}

// SceneAt resolves a scene index against the current canonical order.
// Out-of-range indexes return nil.
func (s *State) SceneAt(index int) *model.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.scenes) {
		return nil
	}
	sc := s.scenes[index]
	return &sc
}

// UpdateScene replaces a scene by id. Unknown ids are ignored and false is returned.
func (s *State) UpdateScene(sc model.Scene) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.scenes {
		if s.scenes[i].ID == sc.ID {
			s.scenes[i] = sc
			s.v.Scenes++
			return true
		}
	}
	return false
}

// AppendScene adds a scene at the tail of the canonical order.
func (s *State) AppendScene(sc model.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, sc)
	s.v.Scenes++
}

// SceneID returns the id of the scene being edited, or nil.
func (s *State) SceneID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyString(s.sceneID)
}

// Frames returns every frame of the project in capture order.
func (s *State) Frames() []model.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Frame(nil), s.frames...)
}

// AddFrame appends a captured frame.
func (s *State) AddFrame(f model.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	s.v.Frames++
}

// UpdateFrame replaces a frame by id in place. Unknown ids are ignored and
// false is returned.
func (s *State) UpdateFrame(f model.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.frames {
		if s.frames[i].ID == f.ID {
			s.frames[i] = f
			s.v.Frames++
			return true
		}
	}
	return false
}

// RemoveFrames drops the given frames, keeping the relative order of the rest.
func (s *State) RemoveFrames(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.frames[:0:0]
	for _, f := range s.frames {
		if !drop[f.ID] {
			kept = append(kept, f)
		}
	}
	s.frames = kept
	s.v.Frames++
}

// FrameID returns the id of the frame being edited, or nil.
func (s *State) FrameID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyString(s.frameID)
}

// SetSelected adds or removes one frame from the selection. Selection order
// is the order frames were selected in.
func (s *State) SetSelected(frameID string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, id := range s.selected {
		if id == frameID {
			idx = i
			break
		}
	}
	switch {
	case selected && idx < 0:
		s.selected = append(s.selected, frameID)
		s.v.Selection++
	case !selected && idx >= 0:
		s.selected = append(s.selected[:idx:idx], s.selected[idx+1:]...)
		s.v.Selection++
	}
}

// ToggleSelected flips one frame's membership and returns the new membership.
func (s *State) ToggleSelected(frameID string) bool {
	sel := !s.IsSelected(frameID)
	s.SetSelected(frameID, sel)
	return sel
}

// IsSelected reports whether a frame is selected.
func (s *State) IsSelected(frameID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.selected {
		if id == frameID {
			return true
		}
	}
	return false
}

// SelectedFrameIDs returns the selection in selection order.
func (s *State) SelectedFrameIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selected...)
}

// ClearSelection empties the selection.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selected) == 0 {
		return
	}
	s.selected = nil
	s.v.Selection++
}

// ScrollAnchor is the frame-list position to return to. Nil means the end of
// the list.
func (s *State) ScrollAnchor() *int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scroll == nil {
		return nil
	}
	v := *s.scroll
	return &v
}

// SetScrollAnchor moves the frame-list anchor. Nil resets it to the end.
func (s *State) SetScrollAnchor(index *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index == nil {
		s.scroll = nil
	} else {
		v := *index
		s.scroll = &v
	}
	s.v.Scroll++
}

// Preview returns the last assembled preview video, or nil.
func (s *State) Preview() *video.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview
}

// SetPreview stores a preview video. Nil clears it.
func (s *State) SetPreview(a *video.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = a
	s.v.Preview++
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

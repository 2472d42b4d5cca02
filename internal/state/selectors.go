package state

import (
	"math"
	"sync"

	"github.com/onionskin/onion/internal/model"
)

// SceneSummary is a scene together with its frames and total running time.
type SceneSummary struct {
	Index  int           `json:"index"`
	Scene  model.Scene   `json:"scene"`
	Frames []model.Frame `json:"frames"`

	// Duration is the total playback time in seconds, rounded to one decimal.
	Duration float64 `json:"duration"`
}

// Selectors derives view data from a State. Results are cached and only
// recomputed when one of the inputs they read has changed.
type Selectors struct {
	s *State

	mu sync.Mutex

	currentKey    [3]uint64
	currentFrames []model.Frame

	onionKey    [4]uint64
	onionFrames []model.Frame

	summaryKey [3]uint64
	summaries  map[int]*SceneSummary

	// recomputes counts cache misses. Tests use it to observe memoization.
	recomputes int
}

// NewSelectors binds a selector set to a state container.
func NewSelectors(s *State) *Selectors {
	return &Selectors{s: s}
}

// CurrentScene returns the scene being edited, or nil for whole-project editing.
func (sel *Selectors) CurrentScene() *model.Scene {
	id := sel.s.SceneID()
	if id == nil {
		return nil
	}
	for _, sc := range sel.s.Scenes() {
		if sc.ID == *id {
			return &sc
		}
	}
	return nil
}

// CurrentFrame returns the frame being edited, or nil.
func (sel *Selectors) CurrentFrame() *model.Frame {
	id := sel.s.FrameID()
	if id == nil {
		return nil
	}
	for _, f := range sel.CurrentFrames() {
		if f.ID == *id {
			return &f
		}
	}
	return nil
}

// CurrentFrames is the frame list being edited: the current scene's frames
// when a scene is selected, otherwise every frame of the project.
func (sel *Selectors) CurrentFrames() []model.Frame {
	v := sel.s.Versions()
	key := [3]uint64{v.Frames, v.Scene, v.Scenes}

	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.currentFrames != nil && sel.currentKey == key {
		return sel.currentFrames
	}

	frames := sel.s.Frames()
	if id := sel.s.SceneID(); id != nil {
		scoped := make([]model.Frame, 0, len(frames))
		for _, f := range frames {
			if f.InScene(*id) {
				scoped = append(scoped, f)
			}
		}
		frames = scoped
	}
	if frames == nil {
		frames = []model.Frame{}
	}

	sel.recomputes++
	sel.currentKey = key
	sel.currentFrames = frames
	return frames
}

// OnionSkinFrames returns the most recent NumOnionSkins frames of the current
// frame list, newest first.
func (sel *Selectors) OnionSkinFrames() []model.Frame {
	current := sel.CurrentFrames()
	v := sel.s.Versions()
	key := [4]uint64{v.Frames, v.Scene, v.Scenes, v.Project}

	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.onionFrames != nil && sel.onionKey == key {
		return sel.onionFrames
	}

	n := 0
	if p := sel.s.Project(); p != nil {
		n = p.NumOnionSkins
	}

	sel.recomputes++
	sel.onionKey = key
	sel.onionFrames = OnionSkins(current, n)
	return sel.onionFrames
}

// SceneSummary summarizes the scene at index in the current canonical scene
// order. Out-of-range indexes return nil.
func (sel *Selectors) SceneSummary(index int) *SceneSummary {
	v := sel.s.Versions()
	key := [3]uint64{v.Frames, v.Scenes, v.Project}

	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.summaryKey != key || sel.summaries == nil {
		sel.summaryKey = key
		sel.summaries = make(map[int]*SceneSummary)
	}
	if sum, ok := sel.summaries[index]; ok {
		return sum
	}

	sc := sel.s.SceneAt(index)
	if sc == nil {
		return nil
	}
	rate := 0
	if p := sel.s.Project(); p != nil {
		rate = p.FrameRate
	}

	sel.recomputes++
	sum := Summarize(index, *sc, sel.s.Frames(), rate)
	sel.summaries[index] = sum
	return sum
}

// SelectedFrameIDs returns the selection in selection order.
func (sel *Selectors) SelectedFrameIDs() []string {
	return sel.s.SelectedFrameIDs()
}

// ScrollAnchor returns the frame-list anchor; nil means the end of the list.
func (sel *Selectors) ScrollAnchor() *int {
	return sel.s.ScrollAnchor()
}

// OnionSkins returns the last min(n, len(frames)) frames, newest first.
func OnionSkins(frames []model.Frame, n int) []model.Frame {
	if n <= 0 || len(frames) == 0 {
		return []model.Frame{}
	}
	if n > len(frames) {
		n = len(frames)
	}
	out := make([]model.Frame, 0, n)
	for i := len(frames) - 1; i >= len(frames)-n; i-- {
		out = append(out, frames[i])
	}
	return out
}

// Summarize builds the summary of one scene from a project's frames.
func Summarize(index int, sc model.Scene, frames []model.Frame, frameRate int) *SceneSummary {
	sum := &SceneSummary{Index: index, Scene: sc, Frames: []model.Frame{}}
	total := 0.0
	for _, f := range frames {
		if !f.InScene(sc.ID) {
			continue
		}
		sum.Frames = append(sum.Frames, f)
		total += f.Seconds(frameRate)
	}
	sum.Duration = RoundSeconds(total)
	return sum
}

// TotalSeconds is the playback time of a frame list, rounded to one decimal.
func TotalSeconds(frames []model.Frame, frameRate int) float64 {
	total := 0.0
	for _, f := range frames {
		total += f.Seconds(frameRate)
	}
	return RoundSeconds(total)
}

// RoundSeconds rounds to one decimal place.
func RoundSeconds(d float64) float64 {
	return math.Round(d*10) / 10
}

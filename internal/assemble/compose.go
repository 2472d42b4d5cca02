// Package assemble turns frame lists into fixed-frame-rate image sequences and
// hands them to a video encoder.
package assemble

import (
	"math"

	"github.com/onionskin/onion/internal/model"
)

// Mode selects which frames of a project make up the sequence.
type Mode int

const (
	// Flat uses every frame of a project without scenes.
	Flat Mode = iota

	// Scene uses only the frames of one scene.
	Scene

	// Storyboard walks every scene in order. A scene without frames but with a
	// storyboard image contributes that image for StoryboardPause seconds.
	Storyboard
)

func (m Mode) String() string {
	switch m {
	case Flat:
		return "flat"
	case Scene:
		return "scene"
	case Storyboard:
		return "storyboard"
	}
	return "unknown"
}

// ModeFor picks the composition mode the way the preview does: projects
// without scenes are flat, a chosen scene is rendered alone, otherwise the
// whole storyboard.
func ModeFor(scenes []model.Scene, sceneID *string) Mode {
	switch {
	case len(scenes) == 0:
		return Flat
	case sceneID != nil:
		return Scene
	default:
		return Storyboard
	}
}

// Compose selects and orders the frames to render. sceneID is only read in
// Scene mode. Pseudo-frames synthesized for storyboard pauses have an empty ID.
func Compose(mode Mode, scenes []model.Scene, frames []model.Frame, sceneID string) []model.Frame {
	switch mode {
	case Scene:
		return framesOf(frames, sceneID)

	case Storyboard:
		var out []model.Frame
		for _, sc := range scenes {
			own := framesOf(frames, sc.ID)
			if len(own) > 0 {
				out = append(out, own...)
				continue
			}
			// Unconfigured tail scene contributes nothing.
			if !sc.Configured() {
				continue
			}
			out = append(out, model.Frame{
				Project:  sc.Project,
				Scene:    model.StringPtr(sc.ID),
				Image:    *sc.Image,
				Duration: model.FloatPtr(model.StoryboardPause),
			})
		}
		return out

	default:
		return append([]model.Frame(nil), frames...)
	}
}

// Repetitions is how many output frames a still occupies: round(rate*d) for
// a positive hold, otherwise 1. It is never less than 1.
func Repetitions(d *float64, frameRate int) int {
	if !model.HasPause(d) {
		return 1
	}
	n := int(math.Round(float64(frameRate) * *d))
	if n < 1 {
		return 1
	}
	return n
}

// Expand lists each frame's image once per repetition, in frame order.
func Expand(frames []model.Frame, frameRate int) []string {
	return expandEach(frames, frameRate, func(i int) (string, bool) {
		return frames[i].Image, true
	})
}

// expandEach repeats item(i) for frame i per its hold. Frames for which item
// reports false are left out.
func expandEach[T any](frames []model.Frame, frameRate int, item func(i int) (T, bool)) []T {
	out := make([]T, 0, len(frames))
	for i, f := range frames {
		v, ok := item(i)
		if !ok {
			continue
		}
		for n := Repetitions(f.Duration, frameRate); n > 0; n-- {
			out = append(out, v)
		}
	}
	return out
}

func framesOf(frames []model.Frame, sceneID string) []model.Frame {
	var out []model.Frame
	for _, f := range frames {
		if f.InScene(sceneID) {
			out = append(out, f)
		}
	}
	return out
}

package model

import "fmt"

// Violation describes a broken model invariant.
type Violation struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Msg  string `json:"msg"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.Kind, v.ID, v.Msg)
}

// Check validates a project's scenes and frames against the model invariants.
// scenes and frames must be in canonical order. An empty result means the
// project is consistent.
func Check(p *Project, scenes []Scene, frames []Frame) []Violation {
	var out []Violation

	if !ValidFrameRate(p.FrameRate) {
		out = append(out, Violation{"project", p.ID, fmt.Sprintf("frame rate %d not in %v", p.FrameRate, FrameRates)})
	}
	if p.NumOnionSkins < 0 || p.NumOnionSkins >= MaxOnionSkins {
		out = append(out, Violation{"project", p.ID, fmt.Sprintf("onion skins %d out of range", p.NumOnionSkins)})
	}

	sceneIDs := make(map[string]bool, len(scenes))
	unconfigured := 0
	for i, s := range scenes {
		if s.Project != p.ID {
			out = append(out, Violation{"scene", s.ID, "belongs to another project"})
		}
		sceneIDs[s.ID] = true
		if !s.Configured() {
			unconfigured++
			if i != len(scenes)-1 {
				out = append(out, Violation{"scene", s.ID, "unconfigured scene is not last"})
			}
		}
	}
	if unconfigured > 1 {
		out = append(out, Violation{"project", p.ID, fmt.Sprintf("%d unconfigured scenes", unconfigured)})
	}

	for _, f := range frames {
		if f.Project != p.ID {
			out = append(out, Violation{"frame", f.ID, "belongs to another project"})
		}
		if f.Scene != nil && !sceneIDs[*f.Scene] {
			out = append(out, Violation{"frame", f.ID, "references missing scene " + *f.Scene})
		}
		if f.Scene == nil && len(scenes) > 0 {
			out = append(out, Violation{"frame", f.ID, "storyboard project frame has no scene"})
		}
	}

	return out
}

package model

import "fmt"

// Movie types recorded in a manifest.
const (
	TypeSimple     = "simple"
	TypeStoryboard = "storyboard"
)

// ManifestFileName is the name of the manifest inside an export archive.
const ManifestFileName = "metadata.json"

// Manifest describes an exported movie: which file holds which frame, and how
// long each frame is held. It is also the format demo movies are seeded from.
type Manifest struct {
	Type    string          `json:"type"`
	Project ManifestProject `json:"project"`
	Frames  []ManifestFrame `json:"frames,omitempty"`
	Scenes  []ManifestScene `json:"scenes,omitempty"`
}

// ManifestProject holds project-wide settings.
type ManifestProject struct {
	FrameRate int `json:"frameRate"`
}

// ManifestScene is one configured scene: its storyboard image and frames.
type ManifestScene struct {
	Filename string          `json:"filename"`
	Frames   []ManifestFrame `json:"frames"`
}

// ManifestFrame maps a file to a frame hold.
type ManifestFrame struct {
	Filename string   `json:"filename"`
	Duration *float64 `json:"duration,omitempty"`
}

// Records materializes a manifest as store records for project p. image maps a
// manifest filename to the stored image value (a data URI or a remote ref).
// Record ids come from newID so callers control determinism in tests.
func (m *Manifest) Records(p *Project, newID func() string, image func(filename string) (string, error)) ([]Scene, []Frame, error) {
	if !ValidFrameRate(m.Project.FrameRate) {
		return nil, nil, fmt.Errorf("manifest frame rate %d is not one of %v", m.Project.FrameRate, FrameRates)
	}
	p.FrameRate = m.Project.FrameRate

	var (
		scenes []Scene
		frames []Frame
	)
	addFrame := func(mf ManifestFrame, scene *string) error {
		img, err := image(mf.Filename)
		if err != nil {
			return err
		}
		frames = append(frames, Frame{
			ID:       newID(),
			Project:  p.ID,
			Scene:    scene,
			Image:    img,
			Duration: mf.Duration,
		})
		return nil
	}

	switch m.Type {
	case TypeSimple:
		for _, mf := range m.Frames {
			if err := addFrame(mf, nil); err != nil {
				return nil, nil, err
			}
		}
	case TypeStoryboard:
		for _, ms := range m.Scenes {
			img, err := image(ms.Filename)
			if err != nil {
				return nil, nil, err
			}
			s := Scene{ID: newID(), Project: p.ID, Image: &img, Description: StringPtr("")}
			scenes = append(scenes, s)
			for _, mf := range ms.Frames {
				if err := addFrame(mf, StringPtr(s.ID)); err != nil {
					return nil, nil, err
				}
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown manifest type %q", m.Type)
	}
	return scenes, frames, nil
}

package model

// FrameRates is the closed set of frame rates a project can use, in toggle order.
var FrameRates = []int{5, 15, 25}

// MaxOnionSkins bounds NumOnionSkins: valid values are 0 through MaxOnionSkins-1.
const MaxOnionSkins = 3

// StoryboardPause is how long a storyboard still is held, in seconds, when a
// scene has no frames of its own.
const StoryboardPause = 2.0

// DefaultTitle is the title given to new projects.
const DefaultTitle = "Movie"

// Project is the root aggregate; one per movie.
type Project struct {
	// ID is a ULID for user projects, or a fixed slug for demo projects
	ID string `json:"id"`

	// Title is an optional human-readable title
	Title *string `json:"title,omitempty"`

	// FrameRate is one of FrameRates
	FrameRate int `json:"frameRate"`

	// NumOnionSkins is how many previous frames are overlaid during capture
	NumOnionSkins int `json:"numOnionSkins"`

	// Demo marks seeded read-only example projects
	Demo bool `json:"demo,omitempty"`
}

// Scene is a storyboard grouping of frames.
// Scenes have no order field; their order is the canonical store enumeration order.
type Scene struct {
	ID      string `json:"id"`
	Project string `json:"project"`

	// Image is the storyboard reference photo. Nil means the scene is unconfigured
	// and does not accept frames yet.
	Image *string `json:"image,omitempty"`

	Description *string `json:"description,omitempty"`
}

// Configured reports whether the scene has a storyboard image.
func (s Scene) Configured() bool {
	return s.Image != nil && *s.Image != ""
}

// Frame is a single captured still.
// Frames have no sequence field; capture order is the canonical store enumeration order.
type Frame struct {
	ID      string  `json:"id"`
	Project string  `json:"project"`
	Scene   *string `json:"scene,omitempty"`
	Image   string  `json:"image"`

	// Duration is a hold in seconds. Nil means one normal frame (1/frameRate).
	Duration *float64 `json:"duration,omitempty"`
}

// InScene reports whether the frame belongs to the given scene id.
func (f Frame) InScene(sceneID string) bool {
	return f.Scene != nil && *f.Scene == sceneID
}

// Seconds returns how long the frame is shown at the given frame rate.
func (f Frame) Seconds(frameRate int) float64 {
	if HasPause(f.Duration) {
		return *f.Duration
	}
	if frameRate <= 0 {
		return 0
	}
	return 1 / float64(frameRate)
}

// CameraDevice is a capture device reported by the camera collaborator.
type CameraDevice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Settings is the process-wide singleton settings record.
type Settings struct {
	Cameras         []CameraDevice `json:"cameras,omitempty"`
	PreferredCamera *string        `json:"preferredCamera,omitempty"`
}

// SettingsKey is the constant key of the settings singleton.
const SettingsKey = "1"

// NewProject returns a project with default settings.
func NewProject(id string) *Project {
	title := DefaultTitle
	return &Project{
		ID:            id,
		Title:         &title,
		FrameRate:     FrameRates[0],
		NumOnionSkins: 1,
	}
}

// NextFrameRate cycles through FrameRates. An unknown rate restarts the cycle.
func NextFrameRate(current int) int {
	i := -1
	for idx, r := range FrameRates {
		if r == current {
			i = idx
			break
		}
	}
	return FrameRates[(i+1)%len(FrameRates)]
}

// NextOnionSkins cycles NumOnionSkins through 0..MaxOnionSkins-1.
func NextOnionSkins(current int) int {
	if current < 0 {
		current = -1
	}
	return (current + 1) % MaxOnionSkins
}

// ValidFrameRate reports whether rate is one of FrameRates.
func ValidFrameRate(rate int) bool {
	for _, r := range FrameRates {
		if r == rate {
			return true
		}
	}
	return false
}

// HasPause reports whether a duration is a usable hold. Nil, zero, negative
// and NaN durations are treated as "no pause".
func HasPause(d *float64) bool {
	return d != nil && *d > 0
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

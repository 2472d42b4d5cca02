package export

import (
	"context"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// DefaultWorkers bounds concurrent decodes when no worker count is given.
const DefaultWorkers = 4

// Resolver turns a stored image value into encoded image bytes.
type Resolver interface {
	Resolve(ctx context.Context, image string) ([]byte, error)
}

// File is one still to place in the archive.
type File struct {
	Name  string
	Image string
}

// Entry is a decoded archive member.
type Entry struct {
	Name string
	Data []byte
}

// Plan is the deterministic layout of an export: archive members in write
// order and the manifest describing them.
type Plan struct {
	Files    []File
	Manifest model.Manifest
}

// NewPlan lays out a project. Projects without scenes export as "simple";
// otherwise every configured scene is written with its storyboard image and
// frames, and unconfigured scenes are skipped.
func NewPlan(p model.Project, scenes []model.Scene, frames []model.Frame) *Plan {
	plan := &Plan{Manifest: model.Manifest{Project: model.ManifestProject{FrameRate: p.FrameRate}}}

	if len(scenes) == 0 {
		plan.Manifest.Type = model.TypeSimple
		plan.Manifest.Frames = []model.ManifestFrame{}
		for i, f := range frames {
			name := SimpleFrameName(i, len(frames), Extension(f.Image))
			plan.Files = append(plan.Files, File{Name: name, Image: f.Image})
			plan.Manifest.Frames = append(plan.Manifest.Frames, model.ManifestFrame{Filename: name, Duration: f.Duration})
		}
		return plan
	}

	plan.Manifest.Type = model.TypeStoryboard
	plan.Manifest.Scenes = []model.ManifestScene{}
	for i, sc := range scenes {
		if !sc.Configured() {
			continue
		}
		var own []model.Frame
		for _, f := range frames {
			if f.InScene(sc.ID) {
				own = append(own, f)
			}
		}

		sceneName := StoryboardImageName(i, len(scenes), len(own), Extension(*sc.Image))
		plan.Files = append(plan.Files, File{Name: sceneName, Image: *sc.Image})
		ms := model.ManifestScene{Filename: sceneName, Frames: []model.ManifestFrame{}}
		for fi, f := range own {
			name := StoryboardFrameName(i, len(scenes), fi, len(own), Extension(f.Image))
			plan.Files = append(plan.Files, File{Name: name, Image: f.Image})
			ms.Frames = append(ms.Frames, model.ManifestFrame{Filename: name, Duration: f.Duration})
		}
		plan.Manifest.Scenes = append(plan.Manifest.Scenes, ms)
	}
	return plan
}

// Decode resolves every planned file concurrently and returns entries in plan
// order. Files that fail to resolve are logged and dropped, and the manifest
// is pruned to match. Only cancellation aborts.
func (p *Plan) Decode(ctx context.Context, res Resolver, workers int, logger *log.Logger) ([]Entry, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	data := make([][]byte, len(p.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range p.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := res.Resolve(gctx, f.Image)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Printf("export: skipping %s: %v", f.Name, err)
				return nil
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	entries := make([]Entry, 0, len(p.Files))
	missing := make(map[string]bool)
	for i, f := range p.Files {
		if len(data[i]) == 0 {
			missing[f.Name] = true
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Data: data[i]})
	}
	if len(missing) > 0 {
		p.prune(missing)
		entries = p.keep(entries)
	}
	return entries, nil
}

// prune drops missing files from the manifest. A scene whose storyboard image
// is missing is dropped with its frames.
func (p *Plan) prune(missing map[string]bool) {
	m := &p.Manifest
	if m.Type == model.TypeSimple {
		m.Frames = keepFrames(m.Frames, missing)
		return
	}
	scenes := m.Scenes[:0:0]
	for _, s := range m.Scenes {
		if missing[s.Filename] {
			continue
		}
		s.Frames = keepFrames(s.Frames, missing)
		scenes = append(scenes, s)
	}
	m.Scenes = scenes
}

// keep filters entries down to the names the manifest still references.
func (p *Plan) keep(entries []Entry) []Entry {
	listed := make(map[string]bool)
	for _, f := range p.Manifest.Frames {
		listed[f.Filename] = true
	}
	for _, s := range p.Manifest.Scenes {
		listed[s.Filename] = true
		for _, f := range s.Frames {
			listed[f.Filename] = true
		}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if listed[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

func keepFrames(frames []model.ManifestFrame, missing map[string]bool) []model.ManifestFrame {
	out := make([]model.ManifestFrame, 0, len(frames))
	for _, f := range frames {
		if !missing[f.Filename] {
			out = append(out, f)
		}
	}
	return out
}

package assemble

import (
	"context"
	"io"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/video"
)

// DefaultWorkers bounds concurrent image resolution when Workers is unset.
const DefaultWorkers = 4

// Input is a project snapshot to assemble.
type Input struct {
	Project model.Project
	Scenes  []model.Scene
	Frames  []model.Frame

	// SceneID restricts assembly to one scene of a storyboard project.
	SceneID *string
}

// Result is a finished assembly.
type Result struct {
	Tag      uint64          `json:"tag"`
	Mode     string          `json:"mode"`
	Frames   int             `json:"frames"`
	Sequence int             `json:"sequence"`
	Skipped  []string        `json:"skipped,omitempty"`
	Video    *video.Artifact `json:"video"`
}

// Assembler runs assembly jobs. Each job is tagged; only the most recently
// started job may deliver a result.
type Assembler struct {
	Encoder  video.Encoder
	Resolver Resolver
	Workers  int
	Logger   *log.Logger

	latest atomic.Uint64
}

// New creates an assembler. A nil logger discards output.
func New(enc video.Encoder, res Resolver, workers int, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Assembler{Encoder: enc, Resolver: res, Workers: workers, Logger: logger}
}

// Begin starts a new job and supersedes every earlier one.
func (a *Assembler) Begin() uint64 {
	return a.latest.Add(1)
}

// Current reports whether tag belongs to the most recently started job.
func (a *Assembler) Current(tag uint64) bool {
	return a.latest.Load() == tag
}

// Assemble composes, resolves, expands and encodes. It returns NO_CONTENT
// without calling the encoder when nothing is left to render, and SUPERSEDED
// when a newer job has started by the time the result would be delivered.
func (a *Assembler) Assemble(ctx context.Context, tag uint64, in Input) (*Result, error) {
	sceneID := ""
	if in.SceneID != nil {
		sceneID = *in.SceneID
	}
	mode := ModeFor(in.Scenes, in.SceneID)
	composed := Compose(mode, in.Scenes, in.Frames, sceneID)
	if len(composed) == 0 {
		return nil, errors.NewNoContent("assemble")
	}

	images, skipped, err := a.resolve(ctx, composed)
	if err != nil {
		return nil, err
	}

	seq := expandEach(composed, in.Project.FrameRate, func(i int) ([]byte, bool) {
		return images[i], len(images[i]) > 0
	})
	if len(seq) == 0 {
		return nil, errors.NewNoContent("assemble")
	}

	if !a.Current(tag) {
		return nil, errors.NewSuperseded(tag)
	}

	a.Logger.Printf("assemble %d: %s mode, %d frames -> %d stills at %d fps", tag, mode, len(composed), len(seq), in.Project.FrameRate)
	art, err := a.Encoder.Encode(ctx, seq, in.Project.FrameRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("assembly")
		}
		return nil, errors.NewEncodeFailed(err)
	}

	if !a.Current(tag) {
		return nil, errors.NewSuperseded(tag)
	}

	return &Result{
		Tag:      tag,
		Mode:     mode.String(),
		Frames:   len(composed),
		Sequence: len(seq),
		Skipped:  skipped,
		Video:    art,
	}, nil
}

// resolve fetches every frame's image concurrently. A frame that fails to
// resolve is logged and left nil; only cancellation aborts the whole run.
func (a *Assembler) resolve(ctx context.Context, frames []model.Frame) ([][]byte, []string, error) {
	images := make([][]byte, len(frames))
	failed := make([]bool, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Workers)
	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := a.Resolver.Resolve(gctx, f.Image)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.Logger.Printf("assemble: skipping frame %q: %v", f.ID, err)
				failed[i] = true
				return nil
			}
			images[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.NewCancelled("assembly")
	}

	var skipped []string
	for i, f := range frames {
		if failed[i] || len(images[i]) == 0 {
			images[i] = nil
			skipped = append(skipped, ref(f))
		}
	}
	return images, skipped, nil
}

// ref names a frame in logs and results. Storyboard pseudo-frames have no id.
func ref(f model.Frame) string {
	if f.ID != "" {
		return f.ID
	}
	if f.Scene != nil {
		return "scene:" + *f.Scene
	}
	return f.Image
}

package ops

import (
	"context"
	"math"
	"strings"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// AddFrame appends a captured still to the current frame list. The session is
// updated immediately and the write is detached; a failed write is logged.
func (e *Editor) AddFrame(image string) (*model.Frame, error) {
	p, err := e.editable()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(image) == "" {
		return nil, errors.NewInvalidRequest("image is required")
	}

	f := model.Frame{ID: model.NewID(), Project: p.ID, Image: image}
	if sc := e.sel.CurrentScene(); sc != nil {
		if !sc.Configured() {
			return nil, errors.NewInvalidRequest("scene has no storyboard image yet")
		}
		f.Scene = model.StringPtr(sc.ID)
	} else if len(e.state.Scenes()) > 0 {
		return nil, errors.NewInvalidRequest("choose a scene before capturing")
	}

	anchor := len(e.sel.CurrentFrames()) + 1
	e.state.AddFrame(f)
	e.state.SetScrollAnchor(&anchor)

	e.writer.Submit("frame "+f.ID, func(ctx context.Context) error {
		return db.PutFrame(ctx, e.db, &f)
	})
	return &f, nil
}

// SetFrameDuration sets or clears a frame's hold and waits for the write.
// The selection is cleared and the scroll anchor moves to the frame. An
// unknown frame is logged and ignored. Non-positive and NaN durations clear
// the hold.
func (e *Editor) SetFrameDuration(ctx context.Context, frameID string, duration *float64) error {
	if _, err := e.editable(); err != nil {
		return err
	}

	index := -1
	var f model.Frame
	for i, cf := range e.sel.CurrentFrames() {
		if cf.ID == frameID {
			index, f = i, cf
			break
		}
	}
	if index < 0 {
		e.logger.Printf("set duration: frame %s not found", frameID)
		return nil
	}

	if duration != nil && (math.IsNaN(*duration) || math.IsInf(*duration, 0) || *duration <= 0) {
		duration = nil
	}
	if duration == nil {
		f.Duration = nil
	} else {
		f.Duration = model.FloatPtr(*duration)
	}

	e.state.UpdateFrame(f)
	e.state.ClearSelection()
	e.state.SetScrollAnchor(&index)

	return e.writer.Do(ctx, "frame "+f.ID, func(ctx context.Context) error {
		return db.PutFrame(ctx, e.db, &f)
	})
}

// ToggleFrameSelected flips a frame's selection and returns whether it is now
// selected.
func (e *Editor) ToggleFrameSelected(frameID string) bool {
	return e.state.ToggleSelected(frameID)
}

// SetFrameSelected adds a frame to or removes it from the selection.
func (e *Editor) SetFrameSelected(frameID string, selected bool) {
	e.state.SetSelected(frameID, selected)
}

// RemoveSelectedFrames deletes every selected frame and clears the selection.
// It returns the number of rows deleted.
func (e *Editor) RemoveSelectedFrames(ctx context.Context) (int, error) {
	if _, err := e.editable(); err != nil {
		return 0, err
	}
	ids := e.state.SelectedFrameIDs()
	if len(ids) == 0 {
		return 0, nil
	}

	e.logger.Printf("delete frames: %s", strings.Join(ids, ", "))
	e.state.RemoveFrames(ids)
	e.state.ClearSelection()

	var n int
	err := e.writer.Do(ctx, "delete frames", func(ctx context.Context) error {
		var err error
		n, err = db.DeleteFrames(ctx, e.db, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

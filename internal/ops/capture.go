package ops

import (
	"context"
	"database/sql"

	"github.com/onionskin/onion/internal/capture"
	"github.com/onionskin/onion/internal/model"
)

// DetectCameras lists devices and records them.
func DetectCameras(ctx context.Context, database *sql.DB, lister capture.DeviceLister) (*model.Settings, error) {
	devices, err := lister.Devices(ctx)
	if err != nil {
		return nil, capture.Classify(err)
	}
	return SetCameras(ctx, database, devices)
}

// Capture takes one still from src and appends it to the current frame list.
func (e *Editor) Capture(ctx context.Context, src capture.Source) (*model.Frame, error) {
	if _, err := e.editable(); err != nil {
		return nil, err
	}
	image, err := src.Still(ctx)
	if err != nil {
		return nil, capture.Classify(err)
	}
	return e.AddFrame(image)
}

// CaptureSceneImage takes one still from src and uses it as the current
// scene's storyboard image.
func (e *Editor) CaptureSceneImage(ctx context.Context, src capture.Source) error {
	if _, err := e.editable(); err != nil {
		return err
	}
	image, err := src.Still(ctx)
	if err != nil {
		return capture.Classify(err)
	}
	return e.AddSceneImage(ctx, image)
}

package ops

import (
	"context"
	"database/sql"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// LoadSettings returns the settings singleton, creating an empty one on first use.
func LoadSettings(ctx context.Context, database *sql.DB) (*model.Settings, error) {
	s, err := db.GetSettings(ctx, database)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	s = &model.Settings{}
	if err := db.PutSettings(ctx, database, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCameras records the available capture devices. A preferred camera that
// is no longer present is replaced by the first device.
func SetCameras(ctx context.Context, database *sql.DB, cameras []model.CameraDevice) (*model.Settings, error) {
	s, err := LoadSettings(ctx, database)
	if err != nil {
		return nil, err
	}
	s.Cameras = cameras

	if s.PreferredCamera != nil && !hasCamera(cameras, *s.PreferredCamera) {
		s.PreferredCamera = nil
	}
	if s.PreferredCamera == nil && len(cameras) > 0 {
		s.PreferredCamera = model.StringPtr(cameras[0].ID)
	}

	if err := db.PutSettings(ctx, database, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetPreferredCamera selects one of the recorded devices.
func SetPreferredCamera(ctx context.Context, database *sql.DB, deviceID string) (*model.Settings, error) {
	s, err := LoadSettings(ctx, database)
	if err != nil {
		return nil, err
	}
	if !hasCamera(s.Cameras, deviceID) {
		return nil, errors.NewNotFound("camera", deviceID)
	}
	s.PreferredCamera = model.StringPtr(deviceID)
	if err := db.PutSettings(ctx, database, s); err != nil {
		return nil, err
	}
	return s, nil
}

func hasCamera(cameras []model.CameraDevice, id string) bool {
	for _, c := range cameras {
		if c.ID == id {
			return true
		}
	}
	return false
}

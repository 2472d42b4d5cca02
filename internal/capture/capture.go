// Package capture provides stills and capture devices. Devices are video4linux
// nodes; stills come from image files, which is how frames arrive from a
// camera app or a tethered-shooting folder.
package capture

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// maxStillBytes caps a single captured still.
const maxStillBytes = 32 * 1024 * 1024

// Source yields captured stills as data URIs.
type Source interface {
	Still(ctx context.Context) (string, error)
}

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]model.CameraDevice, error)
}

// FileSource reads stills from image files. Each call to Still returns the
// next file in name order; a single-file source returns the same file every time.
type FileSource struct {
	paths []string
	next  int
}

// NewFileSource opens a file or a directory of jpeg, png and webp images.
func NewFileSource(path string) (*FileSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, Classify(err)
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, Classify(err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".jpg", ".jpeg", ".png", ".webp":
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	if len(paths) == 0 {
		return nil, errors.NewNoCamera()
	}
	return &FileSource{paths: paths}, nil
}

// Len is the number of files the source cycles through.
func (s *FileSource) Len() int {
	return len(s.paths)
}

func (s *FileSource) Still(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("capture")
	}
	path := s.paths[s.next%len(s.paths)]
	if len(s.paths) > 1 {
		s.next++
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", Classify(err)
	}
	return Encode(data)
}

// Encode validates encoded image bytes and embeds them as a data URI with the
// sniffed content type. Pixels are not decoded.
func Encode(data []byte) (string, error) {
	if len(data) > maxStillBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("still exceeds %d bytes", maxStillBytes))
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("unrecognized image: %v", err))
	}
	return model.EncodeDataURI("image/"+format, data), nil
}

// V4L2Lister lists /dev/video* nodes.
type V4L2Lister struct {
	// Dev is the device directory; empty means /dev.
	Dev string

	// Sys is the sysfs class directory used for labels; empty means
	// /sys/class/video4linux.
	Sys string
}

func (l V4L2Lister) Devices(ctx context.Context) ([]model.CameraDevice, error) {
	dev := l.Dev
	if dev == "" {
		dev = "/dev"
	}
	sys := l.Sys
	if sys == "" {
		sys = "/sys/class/video4linux"
	}

	matches, err := filepath.Glob(filepath.Join(dev, "video*"))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(matches) == 0 {
		return nil, errors.NewNoCamera()
	}
	sort.Strings(matches)

	var devices []model.CameraDevice
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("device listing")
		}
		f, err := os.Open(m)
		if err != nil {
			return nil, Classify(err)
		}
		f.Close()

		name := filepath.Base(m)
		label := name
		if b, err := os.ReadFile(filepath.Join(sys, name, "name")); err == nil {
			if s := strings.TrimSpace(string(b)); s != "" {
				label = s
			}
		}
		devices = append(devices, model.CameraDevice{ID: m, Label: label})
	}
	return devices, nil
}

// Classify maps an OS error from a capture device into the error taxonomy:
// permission problems are recoverable CAMERA_DENIED, a missing device is NO_CAMERA.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, fs.ErrPermission):
		return errors.NewCameraDenied(err)
	case stderrors.Is(err, fs.ErrNotExist):
		return errors.NewNoCamera()
	}
	var oErr *errors.OnionError
	if stderrors.As(err, &oErr) {
		return err
	}
	return errors.NewCameraDenied(err)
}

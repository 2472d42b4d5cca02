package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// maxEntryBytes caps a single archive member on import.
const maxEntryBytes = 64 * 1024 * 1024

// WriteArchive writes entries in order followed by metadata.json. Stills are
// stored as-is since webp is already compressed; the manifest is deflated.
func WriteArchive(w io.Writer, entries []Entry, manifest model.Manifest) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store})
		if err != nil {
			return errors.NewArchiveFailed(err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return errors.NewArchiveFailed(err)
		}
	}

	meta, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: model.ManifestFileName, Method: zip.Deflate})
	if err != nil {
		return errors.NewArchiveFailed(err)
	}
	if _, err := fw.Write(meta); err != nil {
		return errors.NewArchiveFailed(err)
	}

	if err := zw.Close(); err != nil {
		return errors.NewArchiveFailed(err)
	}
	return nil
}

// Archive is a parsed export.
type Archive struct {
	Manifest model.Manifest
	Files    map[string][]byte
}

// ReadArchive parses an export zip. Every file the manifest names must be present.
func ReadArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("not a zip archive: %v", err))
	}

	a := &Archive{Files: make(map[string][]byte)}
	var manifest []byte
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		data, err := readEntry(f)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", f.Name, err))
		}
		if name == model.ManifestFileName {
			manifest = data
			continue
		}
		a.Files[name] = data
	}

	if manifest == nil {
		return nil, errors.NewInvalidRequest("archive has no " + model.ManifestFileName)
	}
	if err := json.Unmarshal(manifest, &a.Manifest); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid %s: %v", model.ManifestFileName, err))
	}

	for _, name := range a.referenced() {
		if _, ok := a.Files[name]; !ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("archive is missing %s", name))
		}
	}
	return a, nil
}

// Records materializes the archive as a new project's scenes and frames, with
// stills embedded as data URIs.
func (a *Archive) Records(p *model.Project, newID func() string) ([]model.Scene, []model.Frame, error) {
	scenes, frames, err := a.Manifest.Records(p, newID, func(name string) (string, error) {
		data, ok := a.Files[name]
		if !ok {
			return "", fmt.Errorf("archive is missing %s", name)
		}
		return model.EncodeDataURI(contentType(name, data), data), nil
	})
	if err != nil {
		return nil, nil, errors.NewInvalidRequest(err.Error())
	}
	return scenes, frames, nil
}

func (a *Archive) referenced() []string {
	var names []string
	for _, f := range a.Manifest.Frames {
		names = append(names, f.Filename)
	}
	for _, s := range a.Manifest.Scenes {
		names = append(names, s.Filename)
		for _, f := range s.Frames {
			names = append(names, f.Filename)
		}
	}
	return names
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if n > maxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntryBytes)
	}
	return buf.Bytes(), nil
}

// contentType sniffs the still's bytes and falls back to the file extension.
func contentType(name string, data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	}
	return model.DefaultImageType
}

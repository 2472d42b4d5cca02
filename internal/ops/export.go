package ops

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"strings"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/export"
	"github.com/onionskin/onion/internal/model"
)

// ExportInput contains parameters for the GenerateExportZip operation.
type ExportInput struct {
	// Path is the archive to write. Default: <title>.export.zip in the
	// editor's export directory.
	Path string
}

// ExportOutput contains the result of the GenerateExportZip operation.
type ExportOutput struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Files   int    `json:"files"`
	Skipped int    `json:"skipped"`
}

// GenerateExportZip packages the loaded project. Stills that cannot be
// resolved are left out and the manifest is pruned to match.
func (e *Editor) GenerateExportZip(ctx context.Context, input ExportInput) (*ExportOutput, error) {
	p := e.state.Project()
	if p == nil {
		return nil, errors.NewInvalidRequest("no project loaded")
	}
	if err := e.writer.Flush(ctx); err != nil {
		return nil, err
	}

	path := input.Path
	if path == "" {
		path = filepath.Join(e.exportDir, export.ArchiveName(title(p)))
	}

	plan := export.NewPlan(*p, e.state.Scenes(), e.state.Frames())
	if len(plan.Files) == 0 {
		return nil, errors.NewNoContent("export")
	}
	planned := len(plan.Files)

	entries, err := plan.Decode(ctx, e.resolver, Workers(e.cfg.ExportWorkers), e.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NewNoContent("export")
	}

	e.logger.Printf("export project %s: %d files to %s", p.ID, len(entries), path)
	err = export.WriteFile(path, func(w io.Writer) error {
		return export.WriteArchive(w, entries, plan.Manifest)
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:    path,
		Type:    plan.Manifest.Type,
		Files:   len(entries),
		Skipped: planned - len(entries),
	}, nil
}

// ImportInput contains parameters for the ImportArchive operation.
type ImportInput struct {
	Path  string  // required
	Title *string // default: archive file name without .export.zip
}

// ImportOutput contains the result of the ImportArchive operation.
type ImportOutput struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Scenes int    `json:"scenes"`
	Frames int    `json:"frames"`
}

// ImportArchive creates a new project from an export archive. Stills are
// embedded, so the imported project never needs network access. A storyboard
// gets an empty scene appended to fill next.
func ImportArchive(ctx context.Context, database *sql.DB, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	f, size, err := export.OpenFile(input.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := export.ReadArchive(f, size)
	if err != nil {
		return nil, err
	}

	p := model.NewProject(model.NewID())
	name := strings.TrimSpace(strings.TrimSuffix(filepath.Base(input.Path), export.FileSuffix))
	if input.Title != nil {
		name = strings.TrimSpace(*input.Title)
	}
	if name != "" {
		p.Title = &name
	}

	scenes, frames, err := a.Records(p, model.NewID)
	if err != nil {
		return nil, err
	}
	if a.Manifest.Type == model.TypeStoryboard {
		scenes = append(scenes, model.Scene{ID: model.NewID(), Project: p.ID})
	}

	if err := db.PutRecords(ctx, database, p, scenes, frames); err != nil {
		return nil, err
	}
	return &ImportOutput{
		ID:     p.ID,
		Type:   a.Manifest.Type,
		Scenes: len(scenes),
		Frames: len(frames),
	}, nil
}

func title(p *model.Project) string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

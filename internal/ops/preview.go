package ops

import (
	"context"

	"github.com/onionskin/onion/internal/assemble"
	"github.com/onionskin/onion/internal/errors"
)

// PreviewInput contains parameters for the GeneratePreviewVideo operation.
type PreviewInput struct {
	ProjectID  string // required
	SceneIndex *int   // render one scene; nil renders the whole movie
}

// GeneratePreviewVideo reloads the project and renders it. The previous
// preview is cleared at once. If another preview is started before this one
// finishes, this one returns SUPERSEDED and leaves the session alone: the
// snapshot is only loaded into the session while this job is the latest.
func (e *Editor) GeneratePreviewVideo(ctx context.Context, input PreviewInput) (*assemble.Result, error) {
	e.previewMu.Lock()
	tag := e.assembler.Begin()
	e.state.SetPreview(nil)
	e.previewMu.Unlock()

	l, err := e.readProject(ctx, LoadProjectInput{ProjectID: input.ProjectID, SceneIndex: input.SceneIndex})
	if err != nil {
		return nil, err
	}

	e.previewMu.Lock()
	if !e.assembler.Current(tag) {
		e.previewMu.Unlock()
		return nil, errors.NewSuperseded(tag)
	}
	e.logger.Printf("load project %s for preview %d", l.Project.ID, tag)
	e.state.Load(*l)
	e.previewMu.Unlock()

	res, err := e.assembler.Assemble(ctx, tag, assemble.Input{
		Project: l.Project,
		Scenes:  l.Scenes,
		Frames:  l.Frames,
		SceneID: l.SceneID,
	})
	if err != nil {
		return nil, err
	}

	e.previewMu.Lock()
	defer e.previewMu.Unlock()
	if !e.assembler.Current(tag) {
		return nil, errors.NewSuperseded(tag)
	}
	e.state.SetPreview(res.Video)
	return res, nil
}

package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/state"
)

// NewProjectInput contains parameters for the NewProject operation.
type NewProjectInput struct {
	HasScenes bool    // storyboard movie; starts with one empty scene
	Title     *string // default: model.DefaultTitle
}

// NewProjectOutput contains the result of the NewProject operation.
type NewProjectOutput struct {
	ID string `json:"id"`
}

// NewProject creates a project with default settings.
func NewProject(ctx context.Context, database *sql.DB, input NewProjectInput) (*NewProjectOutput, error) {
	p := model.NewProject(model.NewID())
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.NewInvalidRequest("title must not be empty")
		}
		p.Title = &title
	}

	var scenes []model.Scene
	if input.HasScenes {
		scenes = append(scenes, model.Scene{ID: model.NewID(), Project: p.ID})
	}
	if err := db.PutRecords(ctx, database, p, scenes, nil); err != nil {
		return nil, err
	}
	return &NewProjectOutput{ID: p.ID}, nil
}

// LoadProjectInput contains parameters for the LoadProject operation.
type LoadProjectInput struct {
	ProjectID  string  // required
	SceneIndex *int    // position in the current scene order; nil edits the whole project
	FrameID    *string // frame being edited, if any
}

// LoadProject reads a project into the session. Pending writes are flushed
// first so the snapshot includes them.
func (e *Editor) LoadProject(ctx context.Context, input LoadProjectInput) (*ProjectView, error) {
	l, err := e.readProject(ctx, input)
	if err != nil {
		return nil, err
	}
	e.logger.Printf("load project %s", l.Project.ID)
	e.state.Load(*l)
	return e.View(), nil
}

// readProject flushes pending writes and reads a project snapshot without
// touching the session.
func (e *Editor) readProject(ctx context.Context, input LoadProjectInput) (*state.Loaded, error) {
	if input.ProjectID == "" {
		return nil, errors.NewInvalidRequest("project id is required")
	}
	if input.SceneIndex != nil && *input.SceneIndex < 0 {
		return nil, errors.NewInvalidRequest("scene index must not be negative")
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("load project")
	}
	if err := e.writer.Flush(ctx); err != nil {
		return nil, err
	}

	p, err := db.GetProject(ctx, e.db, input.ProjectID)
	if err != nil {
		return nil, err
	}
	scenes, err := db.ScenesByProject(ctx, e.db, p.ID)
	if err != nil {
		return nil, err
	}
	frames, err := db.FramesByIndex(ctx, e.db, db.IndexProject, p.ID)
	if err != nil {
		return nil, err
	}

	var sceneID *string
	if input.SceneIndex != nil {
		i := *input.SceneIndex
		if i >= len(scenes) {
			return nil, errors.NewNotFound("scene", fmt.Sprintf("%s[%d]", p.ID, i))
		}
		sceneID = model.StringPtr(scenes[i].ID)
	}

	return &state.Loaded{
		Project: *p,
		Scenes:  scenes,
		Frames:  frames,
		SceneID: sceneID,
		FrameID: input.FrameID,
	}, nil
}

// UpdateTitle renames the loaded project. The write is detached.
func (e *Editor) UpdateTitle(title string) error {
	p, err := e.editable()
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.NewInvalidRequest("title must not be empty")
	}
	p.Title = &title
	e.state.SetProject(*p)
	e.writer.Submit("project "+p.ID, func(ctx context.Context) error {
		return db.PutProject(ctx, e.db, p)
	})
	return nil
}

// ToggleOnionSkin cycles the number of onion skins and persists the project.
func (e *Editor) ToggleOnionSkin(ctx context.Context) (int, error) {
	p, err := e.editable()
	if err != nil {
		return 0, err
	}
	p.NumOnionSkins = model.NextOnionSkins(p.NumOnionSkins)
	return p.NumOnionSkins, e.putProject(ctx, p)
}

// ToggleFrameRate cycles the frame rate and persists the project.
func (e *Editor) ToggleFrameRate(ctx context.Context) (int, error) {
	p, err := e.editable()
	if err != nil {
		return 0, err
	}
	p.FrameRate = model.NextFrameRate(p.FrameRate)
	return p.FrameRate, e.putProject(ctx, p)
}

func (e *Editor) putProject(ctx context.Context, p *model.Project) error {
	e.state.SetProject(*p)
	return e.writer.Do(ctx, "project "+p.ID, func(ctx context.Context) error {
		return db.PutProject(ctx, e.db, p)
	})
}

// DeleteProject removes a project with all of its scenes and frames. Deleting
// the loaded project unloads it. Example projects may be deleted too.
func (e *Editor) DeleteProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return errors.NewInvalidRequest("project id is required")
	}
	if err := e.writer.Flush(ctx); err != nil {
		return err
	}

	e.logger.Printf("delete project %s", projectID)
	if err := db.DeleteProject(ctx, e.db, projectID); err != nil {
		return err
	}
	if p := e.state.Project(); p != nil && p.ID == projectID {
		e.state.Unload()
	}
	return nil
}

package ops

import (
	"context"
	"strings"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// AddSceneImage sets the storyboard image of the current scene and waits for
// the write. Configuring the last scene appends a new empty scene so there is
// always one to fill next. With no current scene the call is logged and ignored.
func (e *Editor) AddSceneImage(ctx context.Context, image string) error {
	p, err := e.editable()
	if err != nil {
		return err
	}
	if strings.TrimSpace(image) == "" {
		return errors.NewInvalidRequest("image is required")
	}

	sc := e.sel.CurrentScene()
	if sc == nil {
		e.logger.Printf("scene image: no current scene in project %s", p.ID)
		return nil
	}
	updated := *sc
	updated.Image = model.StringPtr(image)
	e.state.UpdateScene(updated)

	writes := []model.Scene{updated}
	scenes := e.state.Scenes()
	if last := scenes[len(scenes)-1]; last.Configured() {
		next := model.Scene{ID: model.NewID(), Project: p.ID}
		e.state.AppendScene(next)
		writes = append(writes, next)
	}

	return e.writer.Do(ctx, "scene "+updated.ID, func(ctx context.Context) error {
		for i := range writes {
			if err := db.PutScene(ctx, e.db, &writes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetSceneDescription sets the note shown on the storyboard sheet.
func (e *Editor) SetSceneDescription(ctx context.Context, description string) error {
	if _, err := e.editable(); err != nil {
		return err
	}
	sc := e.sel.CurrentScene()
	if sc == nil {
		e.logger.Printf("scene description: no current scene")
		return nil
	}
	updated := *sc
	if d := strings.TrimSpace(description); d == "" {
		updated.Description = nil
	} else {
		updated.Description = &d
	}
	e.state.UpdateScene(updated)
	return e.writer.Do(ctx, "scene "+updated.ID, func(ctx context.Context) error {
		return db.PutScene(ctx, e.db, &updated)
	})
}

// DeleteScene deletes the scene at sceneIndex of the project's current scene
// order together with its frames, then reloads the project at the same index.
// An out-of-range index is logged and ignored.
//
// No replacement scene is appended. Deleting the empty tail scene leaves no
// scene to fill next until another is configured, and deleting the only scene
// leaves a project without scenes, which then edits and exports as a flat movie.
func (e *Editor) DeleteScene(ctx context.Context, projectID string, sceneIndex int) (*ProjectView, error) {
	if sceneIndex < 0 {
		return nil, errors.NewInvalidRequest("scene index must not be negative")
	}
	if err := e.writer.Flush(ctx); err != nil {
		return nil, err
	}

	p, err := db.GetProject(ctx, e.db, projectID)
	if err != nil {
		return nil, err
	}
	if p.Demo {
		return nil, errors.NewDemoReadOnly(p.ID)
	}
	scenes, err := db.ScenesByProject(ctx, e.db, p.ID)
	if err != nil {
		return nil, err
	}
	if sceneIndex >= len(scenes) {
		e.logger.Printf("delete scene: project %s has no scene %d", p.ID, sceneIndex)
		return e.View(), nil
	}

	e.logger.Printf("delete scene %d from project %s", sceneIndex+1, p.ID)
	if err := db.DeleteScene(ctx, e.db, scenes[sceneIndex].ID); err != nil {
		return nil, err
	}

	input := LoadProjectInput{ProjectID: p.ID}
	if sceneIndex < len(scenes)-1 {
		input.SceneIndex = &sceneIndex
	}
	return e.LoadProject(ctx, input)
}

package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/video"
)

// fakeEncoder records the sequences it is asked to encode.
type fakeEncoder struct {
	mu     sync.Mutex
	calls  int
	images [][]byte

	// during runs inside Encode before it returns.
	during func()
}

func (f *fakeEncoder) Encode(_ context.Context, images [][]byte, frameRate int) (*video.Artifact, error) {
	f.mu.Lock()
	f.calls++
	f.images = images
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	return &video.Artifact{ContentType: "video/webm", Data: []byte("vid"), Frames: len(images), FrameRate: frameRate}, nil
}

// dataResolver decodes data URIs and fails on everything else.
type dataResolver struct{}

func (dataResolver) Resolve(_ context.Context, image string) ([]byte, error) {
	_, data, err := model.DecodeDataURI(image)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch %s", image)
	}
	return data, nil
}

func newTestEditor(t *testing.T) (*Editor, *sql.DB, *fakeEncoder) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	enc := &fakeEncoder{}
	e, err := NewEditor(database, config.DefaultConfig(), Options{
		Logger:    log.New(io.Discard, "", 0),
		Encoder:   enc,
		Resolver:  dataResolver{},
		ExportDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, database, enc
}

// still returns a distinct embedded image.
func still(n int) string {
	return model.EncodeDataURI("image/webp", []byte(fmt.Sprintf("still-%d", n)))
}

// loadNew creates a project and loads it into the editor.
func loadNew(t *testing.T, e *Editor, database *sql.DB, hasScenes bool, sceneIndex *int) string {
	t.Helper()
	ctx := context.Background()
	out, err := NewProject(ctx, database, NewProjectInput{HasScenes: hasScenes})
	require.NoError(t, err)
	_, err = e.LoadProject(ctx, LoadProjectInput{ProjectID: out.ID, SceneIndex: sceneIndex})
	require.NoError(t, err)
	return out.ID
}

func frameIDs(frames []model.Frame) []string {
	ids := make([]string, 0, len(frames))
	for _, f := range frames {
		ids = append(ids, f.ID)
	}
	return ids
}

func intPtr(v int) *int { return &v }

// requireConsistent checks the stored project against the model invariants.
func requireConsistent(t *testing.T, database *sql.DB, projectID string) {
	t.Helper()
	ctx := context.Background()
	p, err := db.GetProject(ctx, database, projectID)
	require.NoError(t, err)
	scenes, err := db.ScenesByProject(ctx, database, projectID)
	require.NoError(t, err)
	frames, err := db.FramesByIndex(ctx, database, db.IndexProject, projectID)
	require.NoError(t, err)
	require.Empty(t, model.Check(p, scenes, frames))
}

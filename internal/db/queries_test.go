package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// openTestDB initializes a fresh store in a temp dir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutAndGetProject(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := model.NewProject("p1")
	if err := PutProject(ctx, db, p); err != nil {
		t.Fatalf("PutProject failed: %v", err)
	}

	got, err := GetProject(ctx, db, "p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.FrameRate != 5 || got.NumOnionSkins != 1 {
		t.Errorf("got rate=%d skins=%d, want 5/1", got.FrameRate, got.NumOnionSkins)
	}
	if got.Title == nil || *got.Title != model.DefaultTitle {
		t.Errorf("Title = %v, want %q", got.Title, model.DefaultTitle)
	}

	// Whole-record replace
	p.FrameRate = 25
	p.Title = nil
	if err := PutProject(ctx, db, p); err != nil {
		t.Fatalf("PutProject (replace) failed: %v", err)
	}
	got, err = GetProject(ctx, db, "p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.FrameRate != 25 {
		t.Errorf("FrameRate = %d, want 25", got.FrameRate)
	}
	if got.Title != nil {
		t.Errorf("Title = %q, want nil", *got.Title)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetProject(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProject should return ErrNotFound, got: %v", err)
	}
}

func TestListProjects_CreationOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seeded, err := ListProjects(ctx, db)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}

	for _, id := range []string{"b", "a", "c"} {
		if err := PutProject(ctx, db, model.NewProject(id)); err != nil {
			t.Fatalf("PutProject failed: %v", err)
		}
	}
	// Replacing "b" must not move it.
	b := model.NewProject("b")
	b.FrameRate = 15
	if err := PutProject(ctx, db, b); err != nil {
		t.Fatalf("PutProject failed: %v", err)
	}

	all, err := ListProjects(ctx, db)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	all = all[len(seeded):]
	want := []string{"b", "a", "c"}
	if len(all) != len(want) {
		t.Fatalf("len = %d, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("all[%d].ID = %q, want %q", i, all[i].ID, id)
		}
	}
}

func TestFrames_CaptureOrderSurvivesReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		f := &model.Frame{ID: id, Project: "p", Image: "img-" + id}
		if err := PutFrame(ctx, db, f); err != nil {
			t.Fatalf("PutFrame failed: %v", err)
		}
	}

	// Give f1 a duration; it must stay first.
	f1 := &model.Frame{ID: "f1", Project: "p", Image: "img-f1", Duration: model.FloatPtr(2)}
	if err := PutFrame(ctx, db, f1); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}

	frames, err := FramesByIndex(ctx, db, IndexProject, "p")
	if err != nil {
		t.Fatalf("FramesByIndex failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("len = %d, want 3", len(frames))
	}
	if frames[0].ID != "f1" || frames[0].Duration == nil || *frames[0].Duration != 2 {
		t.Errorf("frames[0] = %+v, want f1 with duration 2", frames[0])
	}
	if frames[1].Duration != nil {
		t.Errorf("frames[1].Duration = %v, want nil", *frames[1].Duration)
	}
}

func TestFramesByIndex_Scene(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	frames := []model.Frame{
		{ID: "f1", Project: "p", Scene: model.StringPtr("s1"), Image: "a"},
		{ID: "f2", Project: "p", Scene: model.StringPtr("s2"), Image: "b"},
		{ID: "f3", Project: "p", Scene: model.StringPtr("s1"), Image: "c"},
		{ID: "f4", Project: "p", Image: "d"},
	}
	for i := range frames {
		if err := PutFrame(ctx, db, &frames[i]); err != nil {
			t.Fatalf("PutFrame failed: %v", err)
		}
	}

	got, err := FramesByIndex(ctx, db, IndexScene, "s1")
	if err != nil {
		t.Fatalf("FramesByIndex failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f1" || got[1].ID != "f3" {
		t.Errorf("scene s1 frames = %+v, want [f1 f3]", got)
	}
}

func TestFramesByIndex_UnknownIndex(t *testing.T) {
	db := openTestDB(t)

	_, err := FramesByIndex(context.Background(), db, Index("image"), "x")
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestEachFrame_StopsEarly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		if err := PutFrame(ctx, db, &model.Frame{ID: id, Project: "p", Image: id}); err != nil {
			t.Fatalf("PutFrame failed: %v", err)
		}
	}

	var seen []string
	err := EachFrame(ctx, db, IndexProject, "p", func(f model.Frame) (bool, error) {
		seen = append(seen, f.ID)
		return len(seen) < 2, nil
	})
	if err != nil {
		t.Fatalf("EachFrame failed: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("seen = %v, want 2 frames", seen)
	}
}

func TestDeleteFrames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		if err := PutFrame(ctx, db, &model.Frame{ID: id, Project: "p", Image: id}); err != nil {
			t.Fatalf("PutFrame failed: %v", err)
		}
	}

	n, err := DeleteFrames(ctx, db, []string{"f1", "f3", "nope"})
	if err != nil {
		t.Fatalf("DeleteFrames failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	left, err := FramesByIndex(ctx, db, IndexProject, "p")
	if err != nil {
		t.Fatalf("FramesByIndex failed: %v", err)
	}
	if len(left) != 1 || left[0].ID != "f2" {
		t.Errorf("left = %+v, want [f2]", left)
	}
}

func TestDeleteScene_CascadesFrames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	img := "data:image/webp;base64,AA=="
	for _, s := range []model.Scene{
		{ID: "s1", Project: "p", Image: &img},
		{ID: "s2", Project: "p", Image: &img},
	} {
		s := s
		if err := PutScene(ctx, db, &s); err != nil {
			t.Fatalf("PutScene failed: %v", err)
		}
	}
	for _, f := range []model.Frame{
		{ID: "f1", Project: "p", Scene: model.StringPtr("s1"), Image: "a"},
		{ID: "f2", Project: "p", Scene: model.StringPtr("s2"), Image: "b"},
	} {
		f := f
		if err := PutFrame(ctx, db, &f); err != nil {
			t.Fatalf("PutFrame failed: %v", err)
		}
	}

	if err := DeleteScene(ctx, db, "s1"); err != nil {
		t.Fatalf("DeleteScene failed: %v", err)
	}

	if _, err := GetScene(ctx, db, "s1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetScene(s1) should return ErrNotFound, got: %v", err)
	}
	frames, err := FramesByIndex(ctx, db, IndexProject, "p")
	if err != nil {
		t.Fatalf("FramesByIndex failed: %v", err)
	}
	if len(frames) != 1 || frames[0].ID != "f2" {
		t.Errorf("frames = %+v, want [f2]", frames)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := PutProject(ctx, db, model.NewProject("p")); err != nil {
		t.Fatalf("PutProject failed: %v", err)
	}
	if err := PutProject(ctx, db, model.NewProject("other")); err != nil {
		t.Fatalf("PutProject failed: %v", err)
	}
	if err := PutScene(ctx, db, &model.Scene{ID: "s1", Project: "p"}); err != nil {
		t.Fatalf("PutScene failed: %v", err)
	}
	if err := PutFrame(ctx, db, &model.Frame{ID: "f1", Project: "p", Image: "a"}); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}
	if err := PutFrame(ctx, db, &model.Frame{ID: "f2", Project: "other", Image: "b"}); err != nil {
		t.Fatalf("PutFrame failed: %v", err)
	}

	if err := DeleteProject(ctx, db, "p"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if _, err := GetProject(ctx, db, "p"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProject should return ErrNotFound, got: %v", err)
	}
	scenes, err := ScenesByProject(ctx, db, "p")
	if err != nil {
		t.Fatalf("ScenesByProject failed: %v", err)
	}
	if len(scenes) != 0 {
		t.Errorf("scenes = %+v, want none", scenes)
	}
	other, err := FramesByIndex(ctx, db, IndexProject, "other")
	if err != nil {
		t.Fatalf("FramesByIndex failed: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other project frames = %d, want 1", len(other))
	}

	// Deleting again is a no-op.
	if err := DeleteProject(ctx, db, "p"); err != nil {
		t.Errorf("second DeleteProject failed: %v", err)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := GetSettings(ctx, db)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetSettings = %+v, want nil before first write", got)
	}

	s := &model.Settings{
		Cameras:         []model.CameraDevice{{ID: "cam0", Label: "Built-in"}},
		PreferredCamera: model.StringPtr("cam0"),
	}
	if err := PutSettings(ctx, db, s); err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}
	s.PreferredCamera = nil
	if err := PutSettings(ctx, db, s); err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}

	got, err = GetSettings(ctx, db)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(got.Cameras) != 1 || got.Cameras[0].Label != "Built-in" {
		t.Errorf("Cameras = %+v", got.Cameras)
	}
	if got.PreferredCamera != nil {
		t.Errorf("PreferredCamera = %q, want nil", *got.PreferredCamera)
	}
}

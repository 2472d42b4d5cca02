package assemble

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/video"
)

// recordingEncoder captures what it was asked to encode.
type recordingEncoder struct {
	mu     sync.Mutex
	calls  int
	images [][]byte
	rate   int
	err    error

	// during runs inside Encode, before returning.
	during func()
}

func (e *recordingEncoder) Encode(ctx context.Context, images [][]byte, frameRate int) (*video.Artifact, error) {
	e.mu.Lock()
	e.calls++
	e.images = images
	e.rate = frameRate
	e.mu.Unlock()
	if e.during != nil {
		e.during()
	}
	if e.err != nil {
		return nil, e.err
	}
	return &video.Artifact{ContentType: "video/webm", Data: []byte("vid"), Frames: len(images), FrameRate: frameRate}, nil
}

// mapResolver serves refs from a map; anything missing fails.
type mapResolver map[string][]byte

func (m mapResolver) Resolve(_ context.Context, image string) ([]byte, error) {
	if data, ok := m[image]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no such image %s", image)
}

func project(rate int) model.Project {
	p := model.NewProject("p")
	p.FrameRate = rate
	return *p
}

func TestAssemble_FlatExpansion(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"A": []byte("a"), "B": []byte("b")}, 2, nil)

	in := Input{
		Project: project(5),
		Frames: []model.Frame{
			{ID: "1", Image: "A"},
			{ID: "2", Image: "B", Duration: model.FloatPtr(2)},
		},
	}
	res, err := a.Assemble(context.Background(), a.Begin(), in)
	require.NoError(t, err)
	require.Equal(t, "flat", res.Mode)
	require.Equal(t, 11, res.Sequence)
	require.Empty(t, res.Skipped)

	require.Equal(t, 5, enc.rate)
	require.Len(t, enc.images, 11)
	require.Equal(t, []byte("a"), enc.images[0])
	require.Equal(t, []byte("b"), enc.images[10])
}

func TestAssemble_EmptyDoesNotEncode(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{}, 1, nil)

	_, err := a.Assemble(context.Background(), a.Begin(), Input{Project: project(5)})
	require.True(t, errors.Is(err, errors.ErrNoContent), "got %v", err)
	require.Zero(t, enc.calls)
}

func TestAssemble_SkipsUnresolvableFrames(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"A": []byte("a"), "C": []byte("c")}, 3, nil)

	in := Input{
		Project: project(5),
		Frames: []model.Frame{
			{ID: "1", Image: "A"},
			{ID: "2", Image: "B"},
			{ID: "3", Image: "C"},
		},
	}
	res, err := a.Assemble(context.Background(), a.Begin(), in)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, res.Skipped)
	require.Equal(t, [][]byte{[]byte("a"), []byte("c")}, enc.images)
}

func TestAssemble_SequenceMatchesExpand(t *testing.T) {
	enc := &recordingEncoder{}
	res := mapResolver{"A": []byte("A"), "C": []byte("C")}
	a := New(enc, res, 2, nil)

	frames := []model.Frame{
		{ID: "1", Image: "A", Duration: model.FloatPtr(0.4)},
		{ID: "2", Image: "B", Duration: model.FloatPtr(3)},
		{ID: "3", Image: "C", Duration: model.FloatPtr(1)},
	}
	_, err := a.Assemble(context.Background(), a.Begin(), Input{Project: project(15), Frames: frames})
	require.NoError(t, err)

	// The unresolvable held frame contributes nothing.
	want := Expand([]model.Frame{frames[0], frames[2]}, 15)
	got := make([]string, len(enc.images))
	for i, img := range enc.images {
		got[i] = string(img)
	}
	require.Equal(t, want, got)
	require.Len(t, got, 6+15)
}

func TestAssemble_AllUnresolvable(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{}, 1, nil)

	in := Input{Project: project(5), Frames: []model.Frame{{ID: "1", Image: "gone"}}}
	_, err := a.Assemble(context.Background(), a.Begin(), in)
	require.True(t, errors.Is(err, errors.ErrNoContent), "got %v", err)
	require.Zero(t, enc.calls)
}

func TestAssemble_StoryboardScenario(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"F1": []byte("1"), "F2": []byte("2"), "S1": []byte("s")}, 2, nil)

	in := Input{
		Project: project(15),
		Scenes: []model.Scene{
			{ID: "s0", Project: "p", Image: model.StringPtr("S0")},
			{ID: "s1", Project: "p", Image: model.StringPtr("S1")},
		},
		Frames: []model.Frame{
			{ID: "f1", Project: "p", Scene: model.StringPtr("s0"), Image: "F1"},
			{ID: "f2", Project: "p", Scene: model.StringPtr("s0"), Image: "F2"},
		},
	}
	res, err := a.Assemble(context.Background(), a.Begin(), in)
	require.NoError(t, err)
	require.Equal(t, "storyboard", res.Mode)
	require.Len(t, enc.images, 2+30)
	for _, img := range enc.images[2:] {
		require.Equal(t, []byte("s"), img)
	}
}

func TestAssemble_SingleScene(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"F1": []byte("1"), "F2": []byte("2")}, 2, nil)

	in := Input{
		Project: project(5),
		Scenes:  []model.Scene{{ID: "s0", Project: "p", Image: model.StringPtr("S0")}, {ID: "s1", Project: "p", Image: model.StringPtr("S1")}},
		Frames: []model.Frame{
			{ID: "f1", Project: "p", Scene: model.StringPtr("s0"), Image: "F1"},
			{ID: "f2", Project: "p", Scene: model.StringPtr("s1"), Image: "F2"},
		},
		SceneID: model.StringPtr("s1"),
	}
	res, err := a.Assemble(context.Background(), a.Begin(), in)
	require.NoError(t, err)
	require.Equal(t, "scene", res.Mode)
	require.Equal(t, [][]byte{[]byte("2")}, enc.images)
}

func TestAssemble_StaleJobIsDiscarded(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"A": []byte("a")}, 1, nil)

	first := a.Begin()
	// A newer request arrives while the first is encoding.
	enc.during = func() { a.Begin() }

	in := Input{Project: project(5), Frames: []model.Frame{{ID: "1", Image: "A"}}}
	_, err := a.Assemble(context.Background(), first, in)
	require.True(t, errors.Is(err, errors.ErrSuperseded), "got %v", err)
}

func TestAssemble_SupersededBeforeEncode(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"A": []byte("a")}, 1, nil)

	first := a.Begin()
	a.Begin()

	in := Input{Project: project(5), Frames: []model.Frame{{ID: "1", Image: "A"}}}
	_, err := a.Assemble(context.Background(), first, in)
	require.True(t, errors.Is(err, errors.ErrSuperseded), "got %v", err)
	require.Zero(t, enc.calls)
}

func TestAssemble_EncoderFailureIsRetryable(t *testing.T) {
	enc := &recordingEncoder{err: fmt.Errorf("boom")}
	a := New(enc, mapResolver{"A": []byte("a")}, 1, nil)

	in := Input{Project: project(5), Frames: []model.Frame{{ID: "1", Image: "A"}}}
	_, err := a.Assemble(context.Background(), a.Begin(), in)
	require.True(t, errors.Is(err, errors.ErrEncodeFailed), "got %v", err)
	require.True(t, errors.Retryable(err))
}

func TestAssemble_Cancelled(t *testing.T) {
	enc := &recordingEncoder{}
	a := New(enc, mapResolver{"A": []byte("a")}, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := Input{Project: project(5), Frames: []model.Frame{{ID: "1", Image: "A"}}}
	_, err := a.Assemble(ctx, a.Begin(), in)
	require.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
}

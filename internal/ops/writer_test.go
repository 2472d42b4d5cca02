package ops

import (
	"bytes"
	"context"
	stderrors "errors"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onionskin/onion/internal/errors"
)

func TestWriter_AppliesInSubmissionOrder(t *testing.T) {
	w := NewWriter(nil)
	defer w.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		w.Submit("n", func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, w.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestWriter_DoReturnsError(t *testing.T) {
	w := NewWriter(nil)
	defer w.Close()

	boom := stderrors.New("boom")
	err := w.Do(context.Background(), "x", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestWriter_SubmitLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(log.New(&buf, "", 0))

	w.Submit("frame f1", func(context.Context) error { return stderrors.New("disk full") })
	require.NoError(t, w.Flush(context.Background()))
	w.Close()

	require.Contains(t, buf.String(), "write frame f1 failed: disk full")
}

func TestWriter_DoHonoursContext(t *testing.T) {
	w := NewWriter(nil)
	defer w.Close()

	release := make(chan struct{})
	w.Submit("slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Do(ctx, "x", func(context.Context) error { return nil })
	require.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
	close(release)
}

func TestWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(log.New(&buf, "", 0))

	ran := false
	w.Submit("last", func(context.Context) error {
		ran = true
		return nil
	})
	w.Close()
	require.True(t, ran, "Close must drain pending writes")

	w.Submit("late", func(context.Context) error { return nil })
	require.Contains(t, buf.String(), "write late dropped")

	err := w.Do(context.Background(), "late", func(context.Context) error { return nil })
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.NoError(t, w.Flush(context.Background()))
	w.Close()
}

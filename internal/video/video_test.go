package video

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onionskin/onion/internal/config"
)

func TestBuildArgs_VP9(t *testing.T) {
	e := NewFFmpegEncoder(config.DefaultConfig())

	args := strings.Join(e.buildArgs(15), " ")
	require.Contains(t, args, "-f image2pipe -framerate 15 -i -")
	require.Contains(t, args, "-c:v libvpx-vp9 -crf 32 -b:v 0")
	require.True(t, strings.HasSuffix(args, "-f webm -"), args)
}

func TestBuildArgs_MP4(t *testing.T) {
	e := &FFmpegEncoder{Codec: "libx264", Format: "mp4", Quality: 23}

	args := strings.Join(e.buildArgs(5), " ")
	require.Contains(t, args, "-crf 23 -preset medium")
	require.Contains(t, args, "-movflags frag_keyframe+empty_moov")
}

func TestEncode_RejectsEmpty(t *testing.T) {
	e := NewFFmpegEncoder(config.DefaultConfig())

	_, err := e.Encode(context.Background(), nil, 5)
	require.Error(t, err)
}

func TestEncode_MissingBinary(t *testing.T) {
	e := &FFmpegEncoder{Path: "/nonexistent/ffmpeg", Codec: "libvpx-vp9", Format: "webm"}

	_, err := e.Encode(context.Background(), [][]byte{{0x1}}, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ffmpeg start error")
}

func TestArtifact(t *testing.T) {
	a := &Artifact{ContentType: ContentType("webm"), Data: []byte("abc"), Frames: 11, FrameRate: 5}

	require.Equal(t, "video/webm", a.ContentType)
	require.Equal(t, "data:video/webm;base64,YWJj", a.DataURI())
	require.InDelta(t, 2.2, a.Seconds(), 1e-9)
	require.Equal(t, "video/mp4", ContentType("MP4"))
}

package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"

	"github.com/onionskin/onion/internal/config"
)

// Artifact is an encoded video.
type Artifact struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	Frames      int    `json:"frames"`
	FrameRate   int    `json:"frameRate"`
}

// DataURI returns a playable data: reference to the video.
func (a *Artifact) DataURI() string {
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Seconds is the playback length.
func (a *Artifact) Seconds() float64 {
	if a.FrameRate <= 0 {
		return 0
	}
	return float64(a.Frames) / float64(a.FrameRate)
}

// Encoder turns an ordered image sequence into a video at a fixed frame rate.
// Each image is an encoded still (webp, jpeg or png bytes).
type Encoder interface {
	Encode(ctx context.Context, images [][]byte, frameRate int) (*Artifact, error)
}

// FFmpegEncoder pipes stills into an ffmpeg process and reads the video back
// from its stdout.
type FFmpegEncoder struct {
	Path    string
	Codec   string
	Format  string
	Quality int
}

// NewFFmpegEncoder builds an encoder from config.
func NewFFmpegEncoder(cfg *config.Config) *FFmpegEncoder {
	return &FFmpegEncoder{
		Path:    cfg.FFmpegPath,
		Codec:   cfg.VideoCodec,
		Format:  cfg.VideoFormat,
		Quality: cfg.VideoQuality,
	}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, images [][]byte, frameRate int) (*Artifact, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to encode")
	}
	if frameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", frameRate)
	}

	cmd := exec.CommandContext(ctx, e.path(), e.buildArgs(frameRate)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	for _, img := range images {
		if _, err := stdin.Write(img); err != nil {
			stdin.Close()
			_ = cmd.Wait()
			return nil, fmt.Errorf("write frame error: %w, output: %s", err, tail(stderr.String()))
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg wait error: %w, output: %s", err, tail(stderr.String()))
	}

	return &Artifact{
		ContentType: ContentType(e.Format),
		Data:        stdout.Bytes(),
		Frames:      len(images),
		FrameRate:   frameRate,
	}, nil
}

func (e *FFmpegEncoder) path() string {
	if e.Path == "" {
		return "ffmpeg"
	}
	return e.Path
}

func (e *FFmpegEncoder) buildArgs(frameRate int) []string {
	args := []string{
		"-y",
		"-f", "image2pipe",
		"-framerate", fmt.Sprintf("%d", frameRate),
		"-i", "-",
		"-r", fmt.Sprintf("%d", frameRate),
		"-pix_fmt", "yuv420p",
		"-c:v", e.Codec,
	}

	switch e.Codec {
	case "libvpx-vp9", "libvpx":
		args = append(args, "-crf", fmt.Sprintf("%d", e.Quality), "-b:v", "0")
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", e.Quality*100))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", e.Quality), "-preset", "medium")
	}

	// mp4 needs a seekable output unless the moov atom is fragmented.
	if e.Format == "mp4" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}

	args = append(args, "-f", e.Format, "-")
	return args
}

// ContentType maps a container format to its media type.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp4":
		return "video/mp4"
	case "gif":
		return "image/gif"
	case "", "webm":
		return "video/webm"
	}
	return "video/" + strings.ToLower(format)
}

// tail keeps the end of ffmpeg's log, where the error is.
func tail(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

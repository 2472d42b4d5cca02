// Package storyboard renders a project's scenes as a printable sheet.
package storyboard

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/state"
)

// Options controls what the sheet includes.
type Options struct {
	// Images embeds storyboard images. Data URIs and remote refs are both
	// emitted as image links.
	Images bool
}

// Markdown renders the sheet. Scenes are numbered from 1 in the order given.
func Markdown(p model.Project, scenes []state.SceneSummary, opts Options) string {
	var b strings.Builder

	title := model.DefaultTitle
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		title = strings.TrimSpace(*p.Title)
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	total := 0.0
	frames := 0
	for _, s := range scenes {
		total += s.Duration
		frames += len(s.Frames)
	}
	fmt.Fprintf(&b, "%d fps, %d scenes, %d frames, %s\n", p.FrameRate, len(scenes), frames, seconds(state.RoundSeconds(total)))

	for _, s := range scenes {
		fmt.Fprintf(&b, "\n## Scene %d", s.Index+1)
		if !s.Scene.Configured() {
			b.WriteString(" (empty)")
		}
		b.WriteString("\n\n")

		if opts.Images && s.Scene.Configured() {
			fmt.Fprintf(&b, "![Scene %d](<%s>)\n\n", s.Index+1, *s.Scene.Image)
		}
		if s.Scene.Description != nil && strings.TrimSpace(*s.Scene.Description) != "" {
			b.WriteString(escape(strings.TrimSpace(*s.Scene.Description)))
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "- Frames: %d\n", len(s.Frames))
		fmt.Fprintf(&b, "- Duration: %s\n", seconds(s.Duration))

		holds := 0
		for _, f := range s.Frames {
			if model.HasPause(f.Duration) {
				holds++
			}
		}
		if holds > 0 {
			fmt.Fprintf(&b, "- Holds: %d\n", holds)
		}
	}
	return b.String()
}

// HTML renders the sheet through goldmark.
func HTML(p model.Project, scenes []state.SceneSummary, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(p, scenes, opts)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func seconds(d float64) string {
	return strconv.FormatFloat(d, 'f', 1, 64) + " s"
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"#", `\#`,
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}

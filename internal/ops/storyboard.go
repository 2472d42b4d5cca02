package ops

import (
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/state"
	"github.com/onionskin/onion/internal/storyboard"
)

// StoryboardOutput contains the result of the Storyboard operation.
type StoryboardOutput struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// Storyboard renders the scene sheet of the loaded project.
func (e *Editor) Storyboard(opts storyboard.Options) (*StoryboardOutput, error) {
	p := e.state.Project()
	if p == nil {
		return nil, errors.NewInvalidRequest("no project loaded")
	}

	n := len(e.state.Scenes())
	summaries := make([]state.SceneSummary, 0, n)
	for i := 0; i < n; i++ {
		if sum := e.sel.SceneSummary(i); sum != nil {
			summaries = append(summaries, *sum)
		}
	}

	html, err := storyboard.HTML(*p, summaries, opts)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &StoryboardOutput{
		Markdown: storyboard.Markdown(*p, summaries, opts),
		HTML:     html,
	}, nil
}

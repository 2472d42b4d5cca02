package ops

import (
	"context"
	"database/sql"
	"slices"

	"github.com/onionskin/onion/internal/db"
	"github.com/onionskin/onion/internal/model"
)

// ProjectSummary is a project as shown on the home listing.
type ProjectSummary struct {
	ID        string  `json:"id"`
	Title     *string `json:"title,omitempty"`
	FrameRate int     `json:"frame_rate"`
	Demo      bool    `json:"demo,omitempty"`
	Scenes    int     `json:"scenes"`
	Frames    int     `json:"frames"`

	// Thumbnail is the first frame image, or the first storyboard image when
	// the project has no frames yet.
	Thumbnail *string `json:"thumbnail,omitempty"`
}

// ListProjectsInput contains parameters for the ListProjects operation.
type ListProjectsInput struct {
	// Thumbnails includes thumbnail images, which may be large data URIs.
	Thumbnails bool
}

// ListProjectsOutput contains the result of the ListProjects operation.
type ListProjectsOutput struct {
	// Projects are the user's projects, newest first.
	Projects []ProjectSummary `json:"projects"`

	// Examples are the seeded demo projects in catalog order.
	Examples []ProjectSummary `json:"examples"`
}

// ListProjects returns the home listing.
func ListProjects(ctx context.Context, database *sql.DB, input ListProjectsInput) (*ListProjectsOutput, error) {
	projects, err := db.ListProjects(ctx, database)
	if err != nil {
		return nil, err
	}

	out := &ListProjectsOutput{Projects: []ProjectSummary{}, Examples: []ProjectSummary{}}
	for _, p := range projects {
		sum, err := summarize(ctx, database, p, input.Thumbnails)
		if err != nil {
			return nil, err
		}
		if p.Demo {
			out.Examples = append(out.Examples, *sum)
		} else {
			out.Projects = append(out.Projects, *sum)
		}
	}
	slices.Reverse(out.Projects)
	return out, nil
}

func summarize(ctx context.Context, database *sql.DB, p model.Project, thumbnails bool) (*ProjectSummary, error) {
	scenes, err := db.ScenesByProject(ctx, database, p.ID)
	if err != nil {
		return nil, err
	}

	sum := &ProjectSummary{
		ID:        p.ID,
		Title:     p.Title,
		FrameRate: p.FrameRate,
		Demo:      p.Demo,
		Scenes:    len(scenes),
	}

	var thumb *string
	err = db.EachFrame(ctx, database, db.IndexProject, p.ID, func(f model.Frame) (bool, error) {
		sum.Frames++
		if thumb == nil && f.Image != "" {
			thumb = model.StringPtr(f.Image)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if thumb == nil {
		for _, sc := range scenes {
			if sc.Configured() {
				thumb = model.StringPtr(*sc.Image)
				break
			}
		}
	}
	if thumbnails {
		sum.Thumbnail = thumb
	}
	return sum, nil
}

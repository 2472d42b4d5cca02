package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/onionskin/onion/internal/model"
)

//go:embed demo/*.yaml demo/*.json
var demoFS embed.FS

// Demo is one entry of the embedded demo catalog.
type Demo struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Manifest string `yaml:"manifest"`
	Path     string `yaml:"path"`
}

type catalog struct {
	Demos []Demo `yaml:"demos"`
}

// Demos returns the embedded demo catalog.
func Demos() ([]Demo, error) {
	data, err := demoFS.ReadFile("demo/catalog.yaml")
	if err != nil {
		return nil, err
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse demo catalog: %w", err)
	}
	return c.Demos, nil
}

// DemoManifest loads the manifest of a catalog entry.
func DemoManifest(d Demo) (*model.Manifest, error) {
	data, err := demoFS.ReadFile(path.Join("demo", d.Manifest))
	if err != nil {
		return nil, err
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse demo manifest %s: %w", d.Manifest, err)
	}
	return &m, nil
}

// SeedDemo writes one demo project with its scenes and frames. Image values are
// relative refs under d.Path. An existing project with the same id is left
// untouched and false is returned.
func SeedDemo(ctx context.Context, database *sql.DB, d Demo) (bool, error) {
	exists, err := ProjectExists(ctx, database, d.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	m, err := DemoManifest(d)
	if err != nil {
		return false, err
	}

	p := model.NewProject(d.ID)
	p.Demo = true
	if d.Title != "" {
		p.Title = model.StringPtr(d.Title)
	}
	scenes, frames, err := m.Records(p, model.NewID, func(filename string) (string, error) {
		return path.Join(d.Path, filename), nil
	})
	if err != nil {
		return false, err
	}

	if err := PutRecords(ctx, database, p, scenes, frames); err != nil {
		return false, err
	}
	return true, nil
}

// PutRecords writes a project with its scenes and frames in one transaction.
// Scenes and frames are written in slice order, which becomes their canonical order.
func PutRecords(ctx context.Context, database *sql.DB, p *model.Project, scenes []model.Scene, frames []model.Frame) error {
	return inTx(ctx, database, func(tx *sql.Tx) error {
		if err := PutProject(ctx, tx, p); err != nil {
			return err
		}
		for i := range scenes {
			if err := PutScene(ctx, tx, &scenes[i]); err != nil {
				return err
			}
		}
		for i := range frames {
			if err := PutFrame(ctx, tx, &frames[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// seedDemos seeds every catalog entry. Called once by migration 2.
func seedDemos(database *sql.DB) error {
	demos, err := Demos()
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, d := range demos {
		if _, err := SeedDemo(ctx, database, d); err != nil {
			return fmt.Errorf("seed %s: %w", d.ID, err)
		}
	}
	return nil
}

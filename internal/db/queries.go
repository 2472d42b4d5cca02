package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, so single-record
// operations can run standalone or inside a cascade transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Index names a secondary index on the frames collection.
type Index string

const (
	IndexProject Index = "project"
	IndexScene   Index = "scene"
)

// column maps an index name to its column. Only known indexes are accepted so
// the name can be interpolated into SQL.
func (i Index) column() (string, error) {
	switch i {
	case IndexProject:
		return "project", nil
	case IndexScene:
		return "scene", nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown index %q", i))
}

// Projects

// GetProject retrieves a project by id.
func GetProject(ctx context.Context, q Queryer, id string) (*model.Project, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, frame_rate, num_onion_skins, demo
		FROM projects
		WHERE id = ?
	`, id)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("project", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// PutProject writes a whole project record, inserting or replacing by id.
func PutProject(ctx context.Context, q Queryer, p *model.Project) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, title, frame_rate, num_onion_skins, demo)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			frame_rate = excluded.frame_rate,
			num_onion_skins = excluded.num_onion_skins,
			demo = excluded.demo
	`, p.ID, toNullString(p.Title), p.FrameRate, p.NumOnionSkins, p.Demo)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListProjects returns all projects in creation order.
func ListProjects(ctx context.Context, q Queryer) ([]model.Project, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, frame_rate, num_onion_skins, demo
		FROM projects
		ORDER BY seq
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ProjectExists reports whether a project with the given id is stored.
func ProjectExists(ctx context.Context, q Queryer, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// DeleteProject deletes all scenes and frames of a project, then the project
// itself, in one transaction. Deleting a missing project is not an error.
func DeleteProject(ctx context.Context, database *sql.DB, id string) error {
	return inTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE project = ?`, id); err != nil {
			return err
		}
		if _, err := DeleteFramesByIndex(ctx, tx, IndexProject, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		return err
	})
}

// Scenes

// GetScene retrieves a scene by id.
func GetScene(ctx context.Context, q Queryer, id string) (*model.Scene, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, project, image, description
		FROM scenes
		WHERE id = ?
	`, id)

	s, err := scanScene(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("scene", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// PutScene writes a whole scene record, inserting or replacing by id.
// A replaced scene keeps its position in the canonical order.
func PutScene(ctx context.Context, q Queryer, s *model.Scene) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO scenes (id, project, image, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project = excluded.project,
			image = excluded.image,
			description = excluded.description
	`, s.ID, s.Project, toNullString(s.Image), toNullString(s.Description))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ScenesByProject returns a project's scenes in canonical order.
func ScenesByProject(ctx context.Context, q Queryer, projectID string) ([]model.Scene, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project, image, description
		FROM scenes
		WHERE project = ?
		ORDER BY seq
	`, projectID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []model.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteScene deletes a scene and, in the same transaction, every frame that
// references it.
func DeleteScene(ctx context.Context, database *sql.DB, id string) error {
	return inTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id); err != nil {
			return err
		}
		_, err := DeleteFramesByIndex(ctx, tx, IndexScene, id)
		return err
	})
}

// Frames

// GetFrame retrieves a frame by id.
func GetFrame(ctx context.Context, q Queryer, id string) (*model.Frame, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, project, scene, image, duration
		FROM frames
		WHERE id = ?
	`, id)

	f, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("frame", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// PutFrame writes a whole frame record, inserting or replacing by id.
// A replaced frame keeps its position in the canonical order.
func PutFrame(ctx context.Context, q Queryer, f *model.Frame) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO frames (id, project, scene, image, duration)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project = excluded.project,
			scene = excluded.scene,
			image = excluded.image,
			duration = excluded.duration
	`, f.ID, f.Project, toNullString(f.Scene), f.Image, toNullFloat(f.Duration))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FramesByIndex returns all frames whose index column equals value, in capture order.
func FramesByIndex(ctx context.Context, q Queryer, index Index, value string) ([]model.Frame, error) {
	var out []model.Frame
	err := EachFrame(ctx, q, index, value, func(f model.Frame) (bool, error) {
		out = append(out, f)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EachFrame streams frames matching the index in capture order. fn returns
// false to stop early.
func EachFrame(ctx context.Context, q Queryer, index Index, value string, fn func(model.Frame) (bool, error)) error {
	col, err := index.column()
	if err != nil {
		return err
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, project, scene, image, duration
		FROM frames
		WHERE %s = ?
		ORDER BY seq
	`, col), value)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("frame scan")
		}
		f, err := scanFrame(rows)
		if err != nil {
			return errors.NewInternal(err)
		}
		more, err := fn(*f)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteFrames deletes the given frames in one transaction and returns how
// many existed.
func DeleteFrames(ctx context.Context, database *sql.DB, ids []string) (int, error) {
	var total int
	err := inTx(ctx, database, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM frames WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteFramesByIndex deletes every frame whose index column equals value.
func DeleteFramesByIndex(ctx context.Context, q Queryer, index Index, value string) (int, error) {
	col, err := index.column()
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM frames WHERE %s = ?`, col), value)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Settings

// GetSettings returns the settings singleton, or nil if it was never written.
func GetSettings(ctx context.Context, q Queryer) (*model.Settings, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, model.SettingsKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var s model.Settings
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode settings: %w", err))
	}
	return &s, nil
}

// PutSettings writes the settings singleton.
func PutSettings(ctx context.Context, q Queryer, s *model.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NewInternal(err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, model.SettingsKey, string(data))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// inTx runs fn in a transaction, committing on success.
func inTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if _, ok := err.(*errors.OnionError); ok {
			return err
		}
		return errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*model.Project, error) {
	var (
		p     model.Project
		title sql.NullString
	)
	if err := row.Scan(&p.ID, &title, &p.FrameRate, &p.NumOnionSkins, &p.Demo); err != nil {
		return nil, err
	}
	p.Title = fromNullString(title)
	return &p, nil
}

func scanScene(row scanner) (*model.Scene, error) {
	var (
		s           model.Scene
		image       sql.NullString
		description sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Project, &image, &description); err != nil {
		return nil, err
	}
	s.Image = fromNullString(image)
	s.Description = fromNullString(description)
	return &s, nil
}

func scanFrame(row scanner) (*model.Frame, error) {
	var (
		f        model.Frame
		scene    sql.NullString
		duration sql.NullFloat64
	)
	if err := row.Scan(&f.ID, &f.Project, &scene, &f.Image, &duration); err != nil {
		return nil, err
	}
	f.Scene = fromNullString(scene)
	if duration.Valid {
		f.Duration = &duration.Float64
	}
	return &f, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

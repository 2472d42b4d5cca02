// Package ops implements the project commands. An Editor is one editing
// session: it owns the in-memory state, applies commands to it and persists
// them through a Writer. Commands that do not need a session (listing,
// settings, import) are plain functions over the database.
package ops

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/onionskin/onion/internal/assemble"
	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/model"
	"github.com/onionskin/onion/internal/state"
	"github.com/onionskin/onion/internal/video"
)

// Options configures an Editor. Zero values select the defaults derived from
// the config.
type Options struct {
	Logger *log.Logger

	// Encoder turns image sequences into preview videos. Default: ffmpeg.
	Encoder video.Encoder

	// Resolver fetches remote image references. Default: assemble.NewResolver(cfg).
	Resolver assemble.Resolver

	// ExportDir is where archives are written when no path is given. Default: ".".
	ExportDir string
}

// Editor is an editing session over one database.
type Editor struct {
	db     *sql.DB
	cfg    *config.Config
	logger *log.Logger

	state     *state.State
	sel       *state.Selectors
	writer    *Writer
	assembler *assemble.Assembler
	resolver  assemble.Resolver
	exportDir string

	// previewMu orders starting a preview against storing one.
	previewMu sync.Mutex
}

// NewEditor creates a session with nothing loaded.
func NewEditor(database *sql.DB, cfg *config.Config, opts Options) (*Editor, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	res := opts.Resolver
	if res == nil {
		router, err := assemble.NewResolver(cfg)
		if err != nil {
			return nil, err
		}
		res = router
	}
	enc := opts.Encoder
	if enc == nil {
		enc = video.NewFFmpegEncoder(cfg)
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	st := state.New()
	return &Editor{
		db:        database,
		cfg:       cfg,
		logger:    logger,
		state:     st,
		sel:       state.NewSelectors(st),
		writer:    NewWriter(logger),
		assembler: assemble.New(enc, res, Workers(cfg.ResolveWorkers), logger),
		resolver:  res,
		exportDir: filepath.Clean(exportDir),
	}, nil
}

// State exposes the session state.
func (e *Editor) State() *state.State { return e.state }

// Selectors exposes the memoized views over the session state.
func (e *Editor) Selectors() *state.Selectors { return e.sel }

// Flush waits for every pending detached write.
func (e *Editor) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

// Close drains pending writes. The database is owned by the caller.
func (e *Editor) Close() {
	e.writer.Close()
}

// editable returns the loaded project if commands may change it.
func (e *Editor) editable() (*model.Project, error) {
	p := e.state.Project()
	if p == nil {
		return nil, errors.NewInvalidRequest("no project loaded")
	}
	if p.Demo {
		return nil, errors.NewDemoReadOnly(p.ID)
	}
	return p, nil
}

// Workers returns n if positive, otherwise the number of logical CPUs.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	c, err := cpu.Counts(true)
	if err != nil || c < 1 {
		return 1
	}
	return c
}

package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/onionskin/onion/internal/capture"
	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/errors"
	"github.com/onionskin/onion/internal/export"
	"github.com/onionskin/onion/internal/ops"
	"github.com/onionskin/onion/internal/storyboard"
	"github.com/onionskin/onion/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(editor *ops.Editor, db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "onion",
		Usage:   "Stop-motion projects, frames and previews",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(db),
			listCmd(db),
			showCmd(editor),
			titleCmd(editor),
			toggleCmd(editor),
			captureCmd(editor),
			durationCmd(editor),
			removeCmd(editor),
			sceneImageCmd(editor),
			deleteSceneCmd(editor),
			deleteCmd(editor),
			renderCmd(editor, cfg),
			exportCmd(editor),
			importCmd(db),
			storyboardCmd(editor),
			camerasCmd(db),
			serveCmd(editor, db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sceneFlag selects one scene of a storyboard project.
func sceneFlag() cli.Flag {
	return &cli.IntFlag{Name: "scene", Aliases: []string{"s"}, Usage: "Scene position, starting at 0 (default: whole movie)"}
}

// newCmd creates the new command.
func newCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Create a project",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "storyboard", Usage: "Create a storyboard movie with scenes"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Project title"},
		},
		Action: func(c *cli.Context) error {
			input := ops.NewProjectInput{HasScenes: c.Bool("storyboard")}
			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}

			output, err := ops.NewProject(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List projects and examples",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "thumbnails", Usage: "Include the first still of each project"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListProjects(c.Context, db, ops.ListProjectsInput{Thumbnails: c.Bool("thumbnails")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a project's scenes, frames and duration",
		ArgsUsage: "<project-id>",
		Flags:     []cli.Flag{sceneFlag()},
		Action: func(c *cli.Context) error {
			view, err := load(c, editor)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(view)
		},
	}
}

// titleCmd creates the title command.
func titleCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "title",
		Usage:     "Rename a project",
		ArgsUsage: "<project-id> <title>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("project id and title are required"))
			}
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			if err := editor.UpdateTitle(c.Args().Get(1)); err != nil {
				return outputError(err)
			}
			if err := editor.Flush(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(editor.View())
		},
	}
}

// toggleCmd creates the toggle command.
func toggleCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Cycle the onion skin count or the frame rate",
		ArgsUsage: "<project-id> onion|rate",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("project id and setting are required"))
			}
			setting := c.Args().Get(1)
			var toggle func() (int, error)
			switch setting {
			case "onion":
				toggle = func() (int, error) { return editor.ToggleOnionSkin(c.Context) }
			case "rate":
				toggle = func() (int, error) { return editor.ToggleFrameRate(c.Context) }
			default:
				return outputError(errors.NewInvalidRequest("setting must be onion or rate"))
			}

			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			value, err := toggle()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"setting": setting, "value": value})
		},
	}
}

// captureCmd creates the capture command.
func captureCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Append stills from an image file or a directory of images",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			sceneFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Image file or directory"},
			&cli.StringFlag{Name: "image", Usage: "Data URI or URL of a single still"},
		},
		Action: func(c *cli.Context) error {
			path, image := c.String("path"), c.String("image")
			if (path == "") == (image == "") {
				return outputError(errors.NewInvalidRequest("exactly one of --path or --image is required"))
			}
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}

			ids := []string{}
			if image != "" {
				f, err := editor.AddFrame(image)
				if err != nil {
					return outputError(err)
				}
				ids = append(ids, f.ID)
			} else {
				src, err := capture.NewFileSource(path)
				if err != nil {
					return outputError(err)
				}
				for i := 0; i < src.Len(); i++ {
					f, err := editor.Capture(c.Context, src)
					if err != nil {
						return outputError(err)
					}
					ids = append(ids, f.ID)
				}
			}
			if err := editor.Flush(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"added": len(ids), "frame_ids": ids})
		},
	}
}

// durationCmd creates the duration command.
func durationCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "duration",
		Usage:     "Hold a frame for a number of seconds; omit seconds to reset",
		ArgsUsage: "<project-id> <frame-id> [seconds]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("project id and frame id are required"))
			}
			var seconds *float64
			if c.NArg() > 2 {
				v, err := strconv.ParseFloat(c.Args().Get(2), 64)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid seconds: %s", c.Args().Get(2))))
				}
				seconds = &v
			}

			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			if err := editor.SetFrameDuration(c.Context, c.Args().Get(1), seconds); err != nil {
				return outputError(err)
			}
			return outputJSON(editor.View())
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Delete frames",
		ArgsUsage: "<project-id> <frame-id>...",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("project id and at least one frame id are required"))
			}
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			for _, id := range c.Args().Tail() {
				editor.SetFrameSelected(id, true)
			}
			n, err := editor.RemoveSelectedFrames(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"removed": n})
		},
	}
}

// sceneImageCmd creates the scene-image command.
func sceneImageCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "scene-image",
		Usage:     "Set the storyboard image and note of a scene",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "scene", Aliases: []string{"s"}, Required: true, Usage: "Scene position, starting at 0"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Image file"},
			&cli.StringFlag{Name: "image", Usage: "Data URI or URL of the image"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Note shown on the storyboard sheet"},
		},
		Action: func(c *cli.Context) error {
			path, image := c.String("path"), c.String("image")
			if path != "" && image != "" {
				return outputError(errors.NewInvalidRequest("--path and --image are mutually exclusive"))
			}
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}

			var err error
			switch {
			case image != "":
				err = editor.AddSceneImage(c.Context, image)
			case path != "":
				var src *capture.FileSource
				if src, err = capture.NewFileSource(path); err == nil {
					err = editor.CaptureSceneImage(c.Context, src)
				}
			}
			if err != nil {
				return outputError(err)
			}
			if c.IsSet("description") {
				if err := editor.SetSceneDescription(c.Context, c.String("description")); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(editor.View())
		},
	}
}

// deleteSceneCmd creates the delete-scene command.
func deleteSceneCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "delete-scene",
		Usage:     "Delete a scene and its frames",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "scene", Aliases: []string{"s"}, Required: true, Usage: "Scene position, starting at 0"},
		},
		Action: func(c *cli.Context) error {
			view, err := editor.DeleteScene(c.Context, c.Args().First(), c.Int("scene"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(view)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a project with all of its scenes and frames",
		ArgsUsage: "<project-id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if err := editor.DeleteProject(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": id})
		},
	}
}

// renderCmd creates the render command.
func renderCmd(editor *ops.Editor, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Encode a preview video of a project or one scene",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			sceneFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default: <project-id>.<format>)"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			input := ops.PreviewInput{ProjectID: id}
			if c.IsSet("scene") {
				scene := c.Int("scene")
				input.SceneIndex = &scene
			}

			res, err := editor.GeneratePreviewVideo(c.Context, input)
			if err != nil {
				return outputError(err)
			}

			out := c.String("out")
			if out == "" {
				out = id + "." + cfg.VideoFormat
			}
			if err := os.WriteFile(out, res.Video.Data, 0o644); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{
				"path":     out,
				"mode":     res.Mode,
				"frames":   res.Frames,
				"sequence": res.Sequence,
				"skipped":  res.Skipped,
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a project to a zip archive",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Archive path (default: <title>" + export.FileSuffix + ")"},
		},
		Action: func(c *cli.Context) error {
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			output, err := editor.GenerateExportZip(c.Context, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create a project from an export archive",
		ArgsUsage: "<archive>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (default: archive name)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ImportInput{Path: c.Args().First()}
			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			output, err := ops.ImportArchive(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// storyboardCmd creates the storyboard command.
func storyboardCmd(editor *ops.Editor) *cli.Command {
	return &cli.Command{
		Name:      "storyboard",
		Usage:     "Print the scene sheet as markdown",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "images", Usage: "Embed scene images"},
			&cli.BoolFlag{Name: "html", Usage: "Print HTML instead of markdown"},
		},
		Action: func(c *cli.Context) error {
			if _, err := load(c, editor); err != nil {
				return outputError(err)
			}
			out, err := editor.Storyboard(storyboard.Options{Images: c.Bool("images")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("html") {
				fmt.Fprint(c.App.Writer, out.HTML)
			} else {
				fmt.Fprint(c.App.Writer, out.Markdown)
			}
			return nil
		},
	}
}

// camerasCmd creates the cameras command.
func camerasCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "cameras",
		Usage: "Detect capture devices and pick the preferred one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefer", Usage: "Device id to use for capture"},
			&cli.BoolFlag{Name: "no-detect", Usage: "Show the stored devices without probing"},
		},
		Action: func(c *cli.Context) error {
			var err error
			if !c.Bool("no-detect") {
				_, err = ops.DetectCameras(c.Context, db, capture.V4L2Lister{})
				// Without a device the stored list is still shown.
				if err != nil && !errors.Is(err, errors.ErrNoCamera) {
					return outputError(err)
				}
			}
			if prefer := c.String("prefer"); prefer != "" {
				if _, err := ops.SetPreferredCamera(c.Context, db, prefer); err != nil {
					return outputError(err)
				}
			}
			settings, serr := ops.LoadSettings(c.Context, db)
			if serr != nil {
				return outputError(serr)
			}
			if errors.Is(err, errors.ErrNoCamera) && len(settings.Cameras) == 0 {
				return outputError(err)
			}
			return outputJSON(settings)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(editor *ops.Editor, db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse projects, previews and exports in a local web viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 7780, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(editor, db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// load reads the project named by the first argument into the editor,
// honoring --scene when the command has it.
func load(c *cli.Context, editor *ops.Editor) (*ops.ProjectView, error) {
	input := ops.LoadProjectInput{ProjectID: c.Args().First()}
	if c.IsSet("scene") {
		scene := c.Int("scene")
		input.SceneIndex = &scene
	}
	return editor.LoadProject(c.Context, input)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var oErr *errors.OnionError
	if stderrors.As(err, &oErr) {
		msg := fmt.Sprintf("[%s] %s", oErr.Code, oErr.Message)
		if errors.Retryable(oErr) {
			msg += " (retry)"
		}
		return cli.Exit(msg, 1)
	}
	return cli.Exit(err.Error(), 1)
}

package mcp

import "github.com/mark3labs/mcp-go/mcp"

var projectIDParam = mcp.WithString("project_id",
	mcp.Required(),
	mcp.Description("Project id as returned by project_list or project_new"),
)

var sceneIndexParam = mcp.WithNumber("scene_index",
	mcp.Description("Position of the scene to edit, starting at 0. Omit to work on the whole movie"),
)

var projectListToolDef = mcp.NewTool("project_list",
	mcp.WithDescription("List projects, newest first, followed by the example projects"),
	mcp.WithBoolean("thumbnails", mcp.Description("Include the first still of each project")),
)

var projectNewToolDef = mcp.NewTool("project_new",
	mcp.WithDescription("Create a project. A storyboard project starts with one empty scene"),
	mcp.WithBoolean("storyboard", mcp.Description("Create a storyboard movie instead of a simple one")),
	mcp.WithString("title", mcp.Description("Project title. Default: Movie")),
)

var projectShowToolDef = mcp.NewTool("project_show",
	mcp.WithDescription("Load a project and show its scenes, frames, onion skins and duration"),
	projectIDParam,
	sceneIndexParam,
)

var projectTitleToolDef = mcp.NewTool("project_title",
	mcp.WithDescription("Rename a project"),
	projectIDParam,
	mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
)

var projectToggleToolDef = mcp.NewTool("project_toggle",
	mcp.WithDescription("Cycle the onion skin count (0, 1, 2) or the frame rate (5, 15, 25 fps)"),
	projectIDParam,
	mcp.WithString("setting",
		mcp.Required(),
		mcp.Enum("onion_skin", "frame_rate"),
		mcp.Description("Setting to cycle"),
	),
)

var projectDeleteToolDef = mcp.NewTool("project_delete",
	mcp.WithDescription("Delete a project with all of its scenes and frames"),
	projectIDParam,
)

var projectExportToolDef = mcp.NewTool("project_export",
	mcp.WithDescription("Write a project to a zip archive with a manifest and its stills"),
	projectIDParam,
	mcp.WithString("path", mcp.Description("Archive path. Default: <title>.export.zip in the export directory")),
)

var projectImportToolDef = mcp.NewTool("project_import",
	mcp.WithDescription("Create a new project from an export archive"),
	mcp.WithString("path", mcp.Required(), mcp.Description("Archive path")),
	mcp.WithString("title", mcp.Description("Title of the new project. Default: archive name")),
)

var projectStoryboardToolDef = mcp.NewTool("project_storyboard",
	mcp.WithDescription("Render the scene sheet of a project as markdown"),
	projectIDParam,
	mcp.WithBoolean("images", mcp.Description("Embed scene images")),
)

var frameAddToolDef = mcp.NewTool("frame_add",
	mcp.WithDescription("Append stills to the current scene, or to the movie when no scene is given. "+
		"Pass either an image reference or a path to an image file or a directory of images"),
	projectIDParam,
	sceneIndexParam,
	mcp.WithString("image", mcp.Description("Data URI or URL of the still")),
	mcp.WithString("path", mcp.Description("Image file, or directory whose images are added in name order")),
)

var frameDurationToolDef = mcp.NewTool("frame_duration",
	mcp.WithDescription("Hold a frame for a number of seconds. Omit seconds to reset to one frame"),
	projectIDParam,
	mcp.WithString("frame_id", mcp.Required(), mcp.Description("Frame id")),
	mcp.WithNumber("seconds", mcp.Description("Hold time in seconds; must be positive")),
)

var frameRemoveToolDef = mcp.NewTool("frame_remove",
	mcp.WithDescription("Delete frames"),
	projectIDParam,
	mcp.WithArray("frame_ids",
		mcp.Required(),
		mcp.Description("Ids of the frames to delete"),
		mcp.WithStringItems(),
	),
)

var sceneImageToolDef = mcp.NewTool("scene_image",
	mcp.WithDescription("Set the storyboard image and note of a scene. "+
		"Filling the last scene appends a new empty one"),
	projectIDParam,
	mcp.WithNumber("scene_index", mcp.Required(), mcp.Description("Position of the scene, starting at 0")),
	mcp.WithString("image", mcp.Description("Data URI or URL of the image")),
	mcp.WithString("path", mcp.Description("Image file")),
	mcp.WithString("description", mcp.Description("Note shown on the storyboard sheet")),
)

var sceneDeleteToolDef = mcp.NewTool("scene_delete",
	mcp.WithDescription("Delete a scene and its frames"),
	projectIDParam,
	mcp.WithNumber("scene_index", mcp.Required(), mcp.Description("Position of the scene, starting at 0")),
)

var videoRenderToolDef = mcp.NewTool("video_render",
	mcp.WithDescription("Render a preview video of a project or of one scene. "+
		"Storyboard images are held for two seconds before their scene"),
	projectIDParam,
	sceneIndexParam,
)

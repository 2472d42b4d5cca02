// Package export packages a project as a zip of numbered stills plus a
// metadata.json manifest, and reads such archives back.
package export

import (
	"fmt"
	"path"
	"strings"
)

// FileSuffix is the extension of export archives.
const FileSuffix = ".export.zip"

// Pad renders n+1 zero-padded to the width needed for a list of max items.
// The width starts at 1 and grows by one for each time max exceeds 10 while
// being divided by 10, so Pad(0, 9) is "1" and Pad(0, 12) is "01". Pad(-1, x)
// is the zero slot used for storyboard images.
func Pad(n, max int) string {
	width := 1
	m := float64(max)
	for m > 10 {
		m /= 10
		width++
	}
	return fmt.Sprintf("%0*d", width, n+1)
}

// DefaultExt is the extension of stills whose type is unknown.
const DefaultExt = ".webp"

var extByType = map[string]string{
	"image/webp": ".webp",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// Extension picks the archive extension for a stored image: the content type
// of a data URI, or the extension of a remote reference. Anything else is
// DefaultExt.
func Extension(image string) string {
	if rest, ok := strings.CutPrefix(image, "data:"); ok {
		header, _, _ := strings.Cut(rest, ",")
		ct, _, _ := strings.Cut(header, ";")
		if ext, ok := extByType[strings.ToLower(strings.TrimSpace(ct))]; ok {
			return ext
		}
		return DefaultExt
	}
	ref, _, _ := strings.Cut(image, "?")
	ext := strings.ToLower(path.Ext(ref))
	if ext == ".jpeg" {
		return ".jpg"
	}
	for _, known := range extByType {
		if ext == known {
			return ext
		}
	}
	return DefaultExt
}

// SimpleFrameName names frame i of a project without scenes.
func SimpleFrameName(i, total int, ext string) string {
	return "frame." + Pad(i, total) + ext
}

// StoryboardImageName names the storyboard image of scene i.
func StoryboardImageName(scene, scenes, sceneFrames int, ext string) string {
	return Pad(scene, scenes) + "." + Pad(-1, sceneFrames) + ".storyboard-image" + ext
}

// StoryboardFrameName names frame fi of scene i.
func StoryboardFrameName(scene, scenes, fi, sceneFrames int, ext string) string {
	return Pad(scene, scenes) + "." + Pad(fi, sceneFrames) + ".frame" + ext
}

// ArchiveName is the download name for a project title.
func ArchiveName(title string) string {
	return SanitizeForFilename(title) + FileSuffix
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
// Removes/replaces characters that could be used for path traversal or injection.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = strings.TrimSpace(result.String())

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "Movie"
	}
	return s
}

// Package download saves edited results to disk. File names are stable for
// a given selection: a fixed prefix, a slice of the result id, and the
// 1-based position within the download batch.
package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-photo-studio/internal/workflow"
)

// filePrefix starts every downloaded file name.
const filePrefix = "edited"

// extFromMIME maps the capability's output MIME type to a file extension.
// The image model returns PNG unless asked otherwise, so that is the default.
func extFromMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// FileName builds the name for one result at the given 1-based position in
// its download batch: edited-<id8>-<n>.<ext>.
func FileName(res workflow.Result, position int) string {
	id := res.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("%s-%s-%d.%s", filePrefix, id, position, extFromMIME(res.MIMEType))
}

// SaveResult writes one result into dir and returns the written path.
// Fire-and-forget from the workflow's perspective; failures only surface to
// the caller of the download action.
func SaveResult(dir string, res workflow.Result, position int) (string, error) {
	path := filepath.Join(dir, FileName(res, position))
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	log.Info().
		Str("file", filepath.Base(path)).
		Int("bytes", len(res.Data)).
		Msg("Saved edited image")

	return path, nil
}

// SaveSelection writes the given results into dir in the order provided
// (callers pass history order) and returns the written paths.
func SaveSelection(dir string, results []workflow.Result) ([]string, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("nothing selected to download")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	paths := make([]string, 0, len(results))
	for i, res := range results {
		path, err := SaveResult(dir, res, i+1)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// SanitizeZipName derives a safe zip file name from a label, falling back to
// the prefix when the label is empty or reduces to nothing.
func SanitizeZipName(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, label)
	if cleaned == "" {
		cleaned = filePrefix
	}
	return cleaned + ".zip"
}

// Package ingest loads user-chosen image files into memory as an upload
// batch. A batch is always replaced wholesale: the workflow never adds or
// removes individual files from an existing batch.
package ingest

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Image is one member of an upload batch: the raw file bytes plus the
// metadata the workflow and the Gemini client need. Identity is positional
// within the batch.
type Image struct {
	// Name is the base file name, used for logging and error messages.
	Name string
	// MIMEType is sniffed from the file content, not the extension.
	MIMEType string
	// Data is the raw file content.
	Data []byte
	// Meta holds best-effort EXIF metadata; nil when extraction failed
	// or the format carries none.
	Meta *Meta
}

// extMIMETypes maps known image extensions to their MIME type. Content
// sniffing is preferred; this is the fallback for formats http.DetectContentType
// does not recognize (HEIC in particular).
var extMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// LoadFiles reads every path into an Image, preserving input order.
// Any unreadable file fails the whole batch; a half-loaded batch is never
// returned.
func LoadFiles(paths []string) ([]Image, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files selected")
	}

	images := make([]Image, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}

		img := Image{
			Name:     filepath.Base(path),
			MIMEType: detectMIME(path, data),
			Data:     data,
		}
		img.Meta = extractMeta(img.Name, data)

		log.Debug().
			Str("file", img.Name).
			Str("mime", img.MIMEType).
			Int("bytes", len(img.Data)).
			Msg("Loaded image into batch")

		images = append(images, img)
	}

	log.Info().Int("count", len(images)).Msg("Upload batch loaded")
	return images, nil
}

// detectMIME sniffs the MIME type from the first bytes of the file, falling
// back to the extension for formats the sniffer reports as octet-stream.
func detectMIME(path string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extMIMETypes[ext]; ok {
		return mime
	}
	return sniffed
}

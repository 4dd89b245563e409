package ingest

import (
	"bytes"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Meta holds the EXIF fields the studio cares about. Extraction is best
// effort: previews and edits work fine without it, so failures only log.
type Meta struct {
	DateTaken   time.Time
	HasDate     bool
	CameraMake  string
	CameraModel string
}

// extractMeta decodes EXIF metadata from the raw image bytes using the
// imagemeta library (pure Go, supports JPEG/HEIC/TIFF; reads only the
// metadata region, not the whole image).
func extractMeta(name string, data []byte) *Meta {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("file", name).Msg("No EXIF metadata extracted")
		return nil
	}

	meta := &Meta{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// Date fallback chain: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.DateTaken = exifData.DateTimeOriginal()
		meta.HasDate = true
	case !exifData.CreateDate().IsZero():
		meta.DateTaken = exifData.CreateDate()
		meta.HasDate = true
	case !exifData.ModifyDate().IsZero():
		meta.DateTaken = exifData.ModifyDate()
		meta.HasDate = true
	}

	log.Debug().
		Str("file", name).
		Bool("has_date", meta.HasDate).
		Str("camera", strings.TrimSpace(meta.CameraMake+" "+meta.CameraModel)).
		Msg("EXIF metadata extracted")

	return meta
}

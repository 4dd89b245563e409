package download

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/fpang/gemini-photo-studio/internal/workflow"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

func init() {
	// Register Zstandard as a ZIP compressor. Images are already compressed,
	// so a fast level is the right trade here.
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
}

// WriteZip streams the given results (in the order provided) into a single
// zstd-compressed ZIP archive. Entry names follow the same scheme as
// individual downloads.
func WriteZip(w io.Writer, results []workflow.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("nothing selected to download")
	}

	zw := zip.NewWriter(w)
	for i, res := range results {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   FileName(res, i+1),
			Method: zipMethodZstd,
		})
		if err != nil {
			return fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := entry.Write(res.Data); err != nil {
			return fmt.Errorf("failed to write zip entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}

package pipeline

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder for dimension probing and recompression

	"github.com/franz/media-vault/internal/util"
)

// preprocess probes image dimensions and, for images above the compress
// threshold, recompresses to JPEG to bound storage cost. Every failure
// path falls back to the original bytes: a photo that cannot be decoded
// is stored as-is, never rejected.
func (p *Pipeline) preprocess(data []byte, mimeType string) (out []byte, width, height int) {
	if !isImageMime(mimeType) {
		return data, 0, 0
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		util.DebugLog("Preprocess: cannot decode image config: %v", err)
		return data, 0, 0
	}
	width, height = cfg.Width, cfg.Height

	if int64(len(data)) <= p.compressThreshold {
		return data, width, height
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		util.DebugLog("Preprocess: cannot decode image: %v", err)
		return data, width, height
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.jpegQuality}); err != nil {
		util.DebugLog("Preprocess: recompression failed: %v", err)
		return data, width, height
	}

	// Only keep the recompressed copy when it actually saves bytes
	if buf.Len() >= len(data) {
		return data, width, height
	}

	util.DebugLog("Preprocess: recompressed %d -> %d bytes", len(data), buf.Len())
	return buf.Bytes(), width, height
}

// isImageMime reports whether the declared mime type is an image the
// preprocessor can handle
func isImageMime(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png":
		return true
	}
	return false
}

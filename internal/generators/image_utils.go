package generators

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	_ "image/jpeg"
)

// NormalizePNG re-encodes arbitrary image bytes as PNG. Portrait assets
// may be checked in as JPEG; the edits endpoint handles mixed types but
// a single format keeps reference chaining predictable.
func NormalizePNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return out.Bytes(), nil
}

// LoadReferenceImage reads an image from a file path or inline base64
// string. Paths are distinguished by the data: prefix or by looking
// like base64 without path separators.
func LoadReferenceImage(source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty image source")
	}
	if strings.HasPrefix(source, "data:") {
		if idx := strings.Index(source, "base64,"); idx >= 0 {
			return base64.StdEncoding.DecodeString(source[idx+len("base64,"):])
		}
		return nil, fmt.Errorf("unsupported data URI")
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", source, err)
	}
	return data, nil
}

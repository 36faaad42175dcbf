// Package imaging shrinks uploads before they are sent for OCR.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxDimension = 800
	JPEGQuality  = 75
)

// Normalize passes JPEG uploads through untouched. Anything else is decoded,
// flattened onto white, shrunk so the longer side is at most MaxDimension and
// re-encoded as JPEG.
func Normalize(data []byte, contentType string) ([]byte, error) {
	if contentType == "image/jpeg" {
		return data, nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

// fit scales (w, h) down so neither side exceeds limit. Images already within
// the limit keep their size.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, (h*limit+w/2)/w)
	}
	return max(1, (w*limit+h/2)/h), limit
}

package storage

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ObjectKey builds the upload key uploads/<name>-<random>.<ext> for a client
// supplied file name. Directory parts of filename are dropped.
func ObjectKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("uploads/%s-%s%s", name, suffix, strings.ToLower(ext))
}

// IsImage reports whether filename has an extension imaging can re-encode.
func IsImage(filename string) bool {
	_, err := imaging.FormatFromFilename(filename)
	return err == nil
}

// Downscale shrinks an image so neither side exceeds maxDim, keeping the
// aspect ratio, and re-encodes it in the format implied by filename. Images
// already within bounds are returned unchanged with resized=false.
func Downscale(data []byte, filename string, maxDim int) (out []byte, resized bool, err error) {
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return nil, false, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return data, false, nil
	}

	fitted := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format); err != nil {
		return nil, false, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), true, nil
}

// Package snapshot persists crops of unrecognized faces.
package snapshot

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/andresmejia3/facewatch/internal/types"
	"golang.org/x/image/draw"
)

// FilePrefix starts every snapshot file name.
const FilePrefix = "unknown-"

// Writer saves JPEG snapshots under a single directory.
type Writer struct {
	dir     string
	quality int
	now     func() time.Time
}

// New returns a Writer for dir. The directory is created on first save.
func New(dir string, quality int) *Writer {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Writer{dir: dir, quality: quality, now: time.Now}
}

// Dir returns the snapshot directory.
func (w *Writer) Dir() string { return w.dir }

// FileName is the snapshot name for t, with second resolution.
func FileName(t time.Time) string {
	return FilePrefix + t.Format("20060102-150405") + ".jpg"
}

// Crop clamps box to non-negative coordinates and to the frame. It reports
// false when nothing is left, in which case the caller uses the full frame.
func Crop(bounds image.Rectangle, box types.BoundingBox) (image.Rectangle, bool) {
	if box.Right <= box.Left || box.Bottom <= box.Top {
		return image.Rectangle{}, false
	}
	r := image.Rect(max(box.Left, 0), max(box.Top, 0), max(box.Right, 0), max(box.Bottom, 0))
	r = r.Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// SaveUnknown writes the face region of img to a timestamped file and
// returns its path. Two saves in the same second overwrite each other.
func (w *Writer) SaveUnknown(img image.Image, box types.BoundingBox) (string, error) {
	if img == nil {
		return "", fmt.Errorf("save snapshot: %w", types.ErrInvalidFrame)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	out := img
	if r, ok := Crop(img.Bounds(), box); ok {
		out = subImage(img, r)
	}

	path := filepath.Join(w.dir, FileName(w.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := jpeg.Encode(f, out, &jpeg.Options{Quality: w.quality}); err != nil {
		f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

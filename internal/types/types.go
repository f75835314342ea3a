package types

import (
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrInvalidFrame marks a frame that failed decoding or shape validation.
	// The pipeline skips such frames and keeps going.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrDetectorUnavailable is returned when the detector process can no longer answer.
	ErrDetectorUnavailable = errors.New("detector unavailable")
)

// BoundingBox is a face region in pixel coordinates of the source frame.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Rect converts the box to an image.Rectangle without canonicalizing it.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(b.Left, b.Top), Max: image.Pt(b.Right, b.Bottom)}
}

// Area returns the box area, or 0 for degenerate boxes.
func (b BoundingBox) Area() int {
	w, h := b.Right-b.Left, b.Bottom-b.Top
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is one face reported by the detector for a frame.
type Detection struct {
	Box      BoundingBox `json:"box"`
	Encoding []float64   `json:"encoding"` // fixed-length vector, dimension set by the encoder
}

// Frame is a single captured frame, both as the raw JPEG handed to the
// detector and as the decoded image used for snapshots and display.
type Frame struct {
	Index    int
	Data     []byte
	Image    image.Image
	Captured time.Time
}

// ValidateFrame performs the basic shape and channel check a frame must pass
// before it is handed to the detector.
func ValidateFrame(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image", ErrInvalidFrame)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidFrame, img.Bounds())
	}
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return fmt.Errorf("%w: expected 3-channel color frame, got %T", ErrInvalidFrame, img)
	}
	return nil
}

// Package source turns an MJPEG byte stream into decoded frames.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"time"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils"
)

const megabyte = 1024 * 1024

// ReaderSource splits a stream of concatenated JPEGs into frames.
type ReaderSource struct {
	scanner *bufio.Scanner
	index   int
	now     func() time.Time
}

// NewReaderSource reads frames from r until it is exhausted.
func NewReaderSource(r io.Reader) *ReaderSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &ReaderSource{scanner: scanner, now: time.Now}
}

// Next returns the next frame. A frame that cannot be decoded is returned
// alongside an error wrapping types.ErrInvalidFrame; the end of the stream is io.EOF.
func (s *ReaderSource) Next(ctx context.Context) (types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return types.Frame{}, err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return types.Frame{}, fmt.Errorf("frame scanner failed: %w", err)
		}
		return types.Frame{}, io.EOF
	}
	s.index++

	data := append([]byte(nil), s.scanner.Bytes()...)
	frame := types.Frame{Index: s.index, Data: data, Captured: s.now()}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return frame, fmt.Errorf("%w: frame %d: %v", types.ErrInvalidFrame, s.index, err)
	}
	frame.Image = img
	return frame, nil
}

// Capture is a ReaderSource fed by an ffmpeg process.
type Capture struct {
	*ReaderSource
	cmd    *utils.SafeCommand
	stdout io.ReadCloser
}

// OpenCapture starts ffmpeg on the configured camera input. The process is
// bound to ctx and is killed when it is canceled.
func OpenCapture(ctx context.Context, cam config.Camera) (*Capture, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffmpeg := utils.NewCaptureCmd(ctx, cam.Input, cam.Format)

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg on %s: %w", cam.Input, err)
	}
	return &Capture{ReaderSource: NewReaderSource(stdout), cmd: ffmpeg, stdout: stdout}, nil
}

// Command exposes the ffmpeg process for diagnostics.
func (c *Capture) Command() *utils.SafeCommand { return c.cmd }

// Close stops reading and waits for ffmpeg. A process killed by context
// cancellation is not reported as an error.
func (c *Capture) Close() error {
	c.stdout.Close()
	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && c.cmd.ProcessState != nil && !c.cmd.ProcessState.Exited() {
		// Terminated by a signal.
		return nil
	}
	return err
}

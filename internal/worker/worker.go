package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils" // Using the SafeCommand wrapper
)

// Response status bytes written by the detector process.
const (
	statusOK    = 0
	statusError = 1
)

// maxPayload bounds a single response so a corrupt length header cannot
// trigger a huge allocation.
const maxPayload = 64 << 20

// PythonWorker drives one external detector/encoder process.
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	// ReadTimeout bounds the wait for each response when DataPipe supports deadlines.
	ReadTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewPythonWorker starts command (program followed by its arguments) with the
// response side channel on FD 3.
func NewPythonWorker(ctx context.Context, id int, command []string, readTimeout time.Duration) (*PythonWorker, error) {
	if len(command) == 0 {
		return nil, errors.New("detector command is empty")
	}
	py := utils.NewSafeCommand(ctx, command[0], command[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:          id,
		Cmd:         py,
		Stdin:       stdin,
		DataPipe:    r,
		ReadTimeout: readTimeout,
	}, nil
}

// Communicate sends one request and returns the raw response payload.
// Protocol: [Length][Data] in both directions.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", types.ErrDetectorUnavailable, err)
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", types.ErrDetectorUnavailable, err)
	}

	if d, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error }); ok && w.ReadTimeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		defer d.SetReadDeadline(time.Time{})
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		// This is where a crashed interpreter shows up
		return nil, fmt.Errorf("%w: read response: %v", types.ErrDetectorUnavailable, err)
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxPayload {
		return nil, fmt.Errorf("%w: response of %d bytes exceeds limit", types.ErrDetectorUnavailable, respLen)
	}
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(w.DataPipe, respBody); err != nil {
		return nil, fmt.Errorf("%w: read response: %v", types.ErrDetectorUnavailable, err)
	}
	return respBody, nil
}

// Detect sends an encoded image and decodes the faces found in it.
func (w *PythonWorker) Detect(ctx context.Context, img []byte) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := w.Communicate(img)
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp)
}

// ParseResponse decodes a response payload.
// Status 0: [NumFaces] then per face [Top,Right,Bottom,Left int32] [Dim] [Dim x float32].
// Status 1: [MsgLen] [Msg].
func ParseResponse(payload []byte) ([]types.Detection, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty worker response")
	}
	r := bytes.NewReader(payload[1:])

	switch payload[0] {
	case statusOK:
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("malformed worker error: %w", err)
		}
		if int64(msgLen) > int64(r.Len()) {
			return nil, fmt.Errorf("malformed worker error: message length %d exceeds payload", msgLen)
		}
		msg := make([]byte, msgLen)
		_, _ = io.ReadFull(r, msg)
		return nil, fmt.Errorf("python worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown worker status %d", payload[0])
	}

	var numFaces uint32
	if err := binary.Read(r, binary.BigEndian, &numFaces); err != nil {
		return nil, fmt.Errorf("read face count: %w", err)
	}

	faces := make([]types.Detection, 0, min(int(numFaces), 64))
	for i := 0; i < int(numFaces); i++ {
		var box [4]int32
		if err := binary.Read(r, binary.BigEndian, &box); err != nil {
			return nil, fmt.Errorf("face %d: read box: %w", i, err)
		}
		var dim uint32
		if err := binary.Read(r, binary.BigEndian, &dim); err != nil {
			return nil, fmt.Errorf("face %d: read dimension: %w", i, err)
		}
		if int64(dim)*4 > int64(r.Len()) {
			return nil, fmt.Errorf("face %d: encoding of %d values exceeds payload", i, dim)
		}
		raw := make([]float32, dim)
		if err := binary.Read(r, binary.BigEndian, raw); err != nil {
			return nil, fmt.Errorf("face %d: read encoding: %w", i, err)
		}
		enc := make([]float64, dim)
		for j, v := range raw {
			if math.IsNaN(float64(v)) {
				return nil, fmt.Errorf("face %d: encoding contains NaN", i)
			}
			enc[j] = float64(v)
		}
		faces = append(faces, types.Detection{
			Box:      types.BoundingBox{Top: int(box[0]), Right: int(box[1]), Bottom: int(box[2]), Left: int(box[3])},
			Encoding: enc,
		})
	}
	return faces, nil
}

// Close shuts the worker down and waits for the process to exit. Later calls
// return the first result.
func (w *PythonWorker) Close() error {
	w.closeOnce.Do(func() {
		w.Stdin.Close()
		w.DataPipe.Close()
		if w.Cmd != nil {
			w.closeErr = w.Cmd.Wait()
		}
	})
	return w.closeErr
}

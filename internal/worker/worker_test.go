package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/andresmejia3/facewatch/internal/types"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func newMockWorker(response []byte) (*PythonWorker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	if response != nil {
		binary.Write(dataPipeMock, binary.BigEndian, uint32(len(response)))
		dataPipeMock.Write(response)
	}
	return &PythonWorker{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock}, stdinMock
}

func TestDetect(t *testing.T) {
	// Protocol: [Status:0] [NumFaces] ([Box] [Dim] [Vec])*
	payload := new(bytes.Buffer)
	payload.WriteByte(0)
	binary.Write(payload, binary.BigEndian, uint32(2))

	binary.Write(payload, binary.BigEndian, [4]int32{10, 60, 70, 5})
	vec := [128]float32{}
	vec[0] = 0.5
	binary.Write(payload, binary.BigEndian, uint32(len(vec)))
	binary.Write(payload, binary.BigEndian, vec)

	binary.Write(payload, binary.BigEndian, [4]int32{-4, 20, 30, -2})
	binary.Write(payload, binary.BigEndian, uint32(2))
	binary.Write(payload, binary.BigEndian, [2]float32{0.25, -1})

	w, stdinMock := newMockWorker(payload.Bytes())

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	faces, err := w.Detect(context.Background(), inputFrame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// Verify Go sent the correct data TO Python
	sentData := stdinMock.Bytes()
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if binary.BigEndian.Uint32(sentData[:4]) != uint32(len(inputFrame)) {
		t.Errorf("bad length header: %X", sentData[:4])
	}

	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	want := types.BoundingBox{Top: 10, Right: 60, Bottom: 70, Left: 5}
	if faces[0].Box != want {
		t.Errorf("box = %+v, want %+v", faces[0].Box, want)
	}
	if len(faces[0].Encoding) != 128 || math.Abs(faces[0].Encoding[0]-0.5) > 1e-9 {
		t.Errorf("unexpected first encoding: len=%d v0=%f", len(faces[0].Encoding), faces[0].Encoding[0])
	}
	// Negative coordinates are passed through; clamping happens at snapshot time.
	if faces[1].Box.Top != -4 || faces[1].Box.Left != -2 {
		t.Errorf("unexpected second box: %+v", faces[1].Box)
	}
	if faces[1].Encoding[1] != -1 {
		t.Errorf("unexpected second encoding: %v", faces[1].Encoding)
	}
}

func TestDetectNoFaces(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0}
	w, _ := newMockWorker(payload)
	faces, err := w.Detect(context.Background(), []byte("frame"))
	if err != nil || len(faces) != 0 {
		t.Errorf("expected no faces, got %v (%v)", faces, err)
	}
}

func TestDetect_Error(t *testing.T) {
	// Protocol: [Status:1] [MsgLen] [Msg]
	payload := new(bytes.Buffer)
	payload.WriteByte(1)

	errMsg := "Python Exception: Import Error"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)

	w, _ := newMockWorker(payload.Bytes())
	_, err := w.Detect(context.Background(), []byte("frame"))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "python worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "python worker error: "+errMsg, err)
	}
	if errors.Is(err, types.ErrDetectorUnavailable) {
		t.Error("a reported worker error must not mark the detector unavailable")
	}
}

func TestDetectWorkerDied(t *testing.T) {
	w, _ := newMockWorker(nil) // nothing to read: the process is gone
	_, err := w.Detect(context.Background(), []byte("frame"))
	if !errors.Is(err, types.ErrDetectorUnavailable) {
		t.Errorf("expected ErrDetectorUnavailable, got %v", err)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"Empty", nil},
		{"UnknownStatus", []byte{7}},
		{"MissingCount", []byte{0, 0}},
		{"TruncatedBox", []byte{0, 0, 0, 0, 1, 0, 0}},
		{"OversizedDim", append([]byte{0, 0, 0, 0, 1}, append(make([]byte, 16), 0xFF, 0xFF, 0xFF, 0xFF)...)},
		{"OversizedErrorMessage", []byte{1, 0, 0, 1, 0, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseResponse(tt.payload); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDetectCanceledContext(t *testing.T) {
	w, stdinMock := newMockWorker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Detect(ctx, []byte("frame")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if stdinMock.Len() != 0 {
		t.Error("nothing should be sent for a canceled request")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, _ := newMockWorker(nil)
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

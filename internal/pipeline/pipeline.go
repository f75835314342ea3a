// Package pipeline runs the per-frame recognition loop: detect, match,
// annotate, debounce, notify and snapshot.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/andresmejia3/facewatch/internal/cooldown"
	"github.com/andresmejia3/facewatch/internal/gallery"
	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/notify"
	"github.com/andresmejia3/facewatch/internal/render"
	"github.com/andresmejia3/facewatch/internal/types"
)

// FrameSource yields frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (types.Frame, error)
}

// Detector finds faces and their encodings in an encoded image.
type Detector interface {
	Detect(ctx context.Context, img []byte) ([]types.Detection, error)
}

// Notifier delivers events. It never fails the caller.
type Notifier interface {
	Dispatch(ctx context.Context, ev notify.Event) notify.Report
}

// SnapshotSaver persists a crop of an unknown face.
type SnapshotSaver interface {
	SaveUnknown(img image.Image, box types.BoundingBox) (string, error)
}

// Renderer displays annotated frames.
type Renderer interface {
	Show(img image.Image)
}

// Options wires a Pipeline. Snapshots and Renderer may be nil.
type Options struct {
	Source    FrameSource
	Detector  Detector
	Gallery   *gallery.Gallery
	Tracker   *cooldown.Tracker
	Notifier  Notifier
	Snapshots SnapshotSaver
	Renderer  Renderer
	Threshold float64
	Logger    *slog.Logger
}

// Stats counts what the loop has done so far.
type Stats struct {
	Frames    int
	Skipped   int
	Faces     int
	Events    int
	Snapshots int
}

// FaceOutcome is what happened to one detected face.
type FaceOutcome struct {
	Detection    types.Detection
	Match        matcher.Result
	Fired        bool
	Report       notify.Report
	SnapshotPath string
	SnapshotErr  error
}

// FrameReport lists face outcomes in detector order.
type FrameReport struct {
	Index int
	Faces []FaceOutcome
}

// Pipeline is the single-threaded frame loop. The cooldown tracker is its
// only state that changes between frames.
type Pipeline struct {
	source    FrameSource
	detector  Detector
	gallery   *gallery.Gallery
	tracker   *cooldown.Tracker
	notifier  Notifier
	snapshots SnapshotSaver
	renderer  Renderer
	threshold float64
	logger    *slog.Logger
	now       func() time.Time

	stats Stats
}

// New validates opts and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("pipeline: cooldown tracker is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("pipeline: notifier is required")
	}
	if math.IsNaN(opts.Threshold) || opts.Threshold < 0 {
		return nil, fmt.Errorf("pipeline: threshold must be >= 0, got %v", opts.Threshold)
	}
	p := &Pipeline{
		source:    opts.Source,
		detector:  opts.Detector,
		gallery:   opts.Gallery,
		tracker:   opts.Tracker,
		notifier:  opts.Notifier,
		snapshots: opts.Snapshots,
		renderer:  opts.Renderer,
		threshold: opts.Threshold,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if p.renderer == nil {
		p.renderer = render.Discard{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats { return p.stats }

// Run processes frames until the source is exhausted, ctx is canceled, or
// the detector becomes unavailable. Invalid frames and failed detections are
// skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.source == nil {
		return errors.New("pipeline: frame source is required")
	}
	defer func() {
		p.logger.Info("pipeline stopped",
			"frames", p.stats.Frames,
			"skipped", p.stats.Skipped,
			"faces", p.stats.Faces,
			"events", p.stats.Events,
			"snapshots", p.stats.Snapshots,
		)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := p.source.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.logger.Info("frame source exhausted")
			return nil
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, types.ErrInvalidFrame):
			p.stats.Skipped++
			p.logger.Warn("skipping frame", "frame", frame.Index, "error", err)
			continue
		default:
			return fmt.Errorf("acquire frame: %w", err)
		}

		if _, err := p.ProcessFrame(ctx, frame); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, types.ErrDetectorUnavailable):
				return err
			default:
				p.stats.Skipped++
				p.logger.Warn("skipping frame", "frame", frame.Index, "error", err)
			}
		}
	}
}

// ProcessFrame runs one frame through detection and the per-face chain.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame types.Frame) (FrameReport, error) {
	report := FrameReport{Index: frame.Index}
	if err := types.ValidateFrame(frame.Image); err != nil {
		return report, err
	}

	data, err := encodedFrame(frame)
	if err != nil {
		return report, err
	}
	faces, err := p.detector.Detect(ctx, data)
	if err != nil {
		return report, fmt.Errorf("detect faces: %w", err)
	}
	p.stats.Frames++

	display := render.Copy(frame.Image)
	for _, face := range faces {
		report.Faces = append(report.Faces, p.processFace(ctx, frame, display, face))
	}
	p.renderer.Show(display)
	return report, nil
}

func (p *Pipeline) processFace(ctx context.Context, frame types.Frame, display *image.RGBA, face types.Detection) FaceOutcome {
	p.stats.Faces++
	out := FaceOutcome{Detection: face}

	if dim := p.gallery.Dim(); dim > 0 && len(face.Encoding) != dim {
		p.logger.Warn("encoding dimension does not match gallery",
			"frame", frame.Index, "got", len(face.Encoding), "want", dim)
	}
	out.Match = matcher.Match(face.Encoding, p.gallery, p.threshold)
	render.Annotate(display, face.Box, out.Match.Label, out.Match.Distance)

	now := p.now()
	if !p.tracker.ShouldFire(out.Match.Label, now) {
		p.logger.Debug("face suppressed by cooldown", "label", out.Match.Label, "frame", frame.Index)
		return out
	}
	out.Fired = true
	p.stats.Events++

	ev := notify.FaceEvent(out.Match.Label, out.Match.Distance, p.threshold, out.Match.IsMatch, now)
	out.Report = p.notifier.Dispatch(ctx, ev)

	if out.Match.Label == matcher.Unknown && p.snapshots != nil {
		path, err := p.snapshots.SaveUnknown(frame.Image, face.Box)
		if err != nil {
			out.SnapshotErr = err
			p.logger.Warn("snapshot failed", "event_id", ev.ID, "error", err)
		} else {
			out.SnapshotPath = path
			p.stats.Snapshots++
			p.logger.Info("snapshot saved", "event_id", ev.ID, "path", path)
		}
	}
	return out
}

// encodedFrame returns the JPEG handed to the detector, encoding the decoded
// image when the source did not keep the original bytes.
func encodedFrame(frame types.Frame) ([]byte, error) {
	if len(frame.Data) > 0 {
		return frame.Data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, nil); err != nil {
		return nil, fmt.Errorf("%w: encode frame %d: %v", types.ErrInvalidFrame, frame.Index, err)
	}
	return buf.Bytes(), nil
}

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const boundary = "frame"

const indexPage = `<!doctype html>
<html>
<head><title>facewatch</title></head>
<body style="margin:0;background:#111">
<img src="/video_feed" style="display:block;margin:auto;max-width:100%">
</body>
</html>
`

// Discard is a renderer that drops every frame.
type Discard struct{}

func (Discard) Show(image.Image) {}

// Preview serves the most recently shown frame as an MJPEG stream.
// Slow viewers skip frames; Show never blocks on them.
type Preview struct {
	logger  *slog.Logger
	quality int
	router  *chi.Mux

	mu          sync.Mutex
	latest      []byte
	subscribers map[chan []byte]struct{}
}

// NewPreview builds the preview relay. Call Serve to start listening.
func NewPreview(logger *slog.Logger) *Preview {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Preview{
		logger:      logger,
		quality:     80,
		subscribers: make(map[chan []byte]struct{}),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/", p.handleIndex)
	r.Get("/video_feed", p.handleFeed)
	r.Get("/snapshot.jpg", p.handleSnapshot)
	p.router = r
	return p
}

// Handler returns the preview router.
func (p *Preview) Handler() http.Handler { return p.router }

// Show encodes img and hands it to every connected viewer.
func (p *Preview) Show(img image.Image) {
	if img == nil {
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		p.logger.Warn("preview encode failed", "error", err)
		return
	}
	frame := buf.Bytes()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = frame
	for ch := range p.subscribers {
		// Replace whatever the viewer has not picked up yet.
		select {
		case <-ch:
		default:
		}
		ch <- frame
	}
}

// Latest returns the last shown frame as JPEG, or nil before the first one.
func (p *Preview) Latest() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *Preview) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest != nil {
		ch <- p.latest
	}
	p.subscribers[ch] = struct{}{}
	return ch
}

func (p *Preview) unsubscribe(ch chan []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, ch)
}

// Serve listens on addr until ctx is canceled.
func (p *Preview) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("preview server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("preview server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Streaming handlers only return when their client goes away.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
		return nil
	}
}

func (p *Preview) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func (p *Preview) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	frame := p.Latest()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(frame)
}

func (p *Preview) handleFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch := p.subscribe()
	defer p.unsubscribe(ch)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// ErrNoFace is returned when none of an identity's reference images yields an encoding.
var ErrNoFace = errors.New("no face found in reference images")

// Manifest lists the reference images for each identity.
type Manifest struct {
	Identities []ManifestEntry `yaml:"identities"`

	// dir is the directory relative image paths are resolved against.
	dir string
}

// ManifestEntry is one identity in a manifest file.
type ManifestEntry struct {
	Label  string   `yaml:"label"`
	Images []string `yaml:"images"`
}

// LoadManifest reads a YAML manifest. Relative image paths are resolved
// against the manifest's own directory.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read gallery manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse gallery manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	for i, e := range m.Identities {
		if e.Label == "" {
			return Manifest{}, fmt.Errorf("identity %d: label is required", i)
		}
		if len(e.Images) == 0 {
			return Manifest{}, fmt.Errorf("identity %q: at least one image is required", e.Label)
		}
	}
	return m, nil
}

// ImageCount returns the total number of reference images in the manifest.
func (m Manifest) ImageCount() int {
	n := 0
	for _, e := range m.Identities {
		n += len(e.Images)
	}
	return n
}

func (m Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Encoder produces face detections and encodings for an encoded image.
type Encoder interface {
	Detect(ctx context.Context, img []byte) ([]types.Detection, error)
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// Progress receives a progress bar while reference images are encoded. Nil disables it.
	Progress io.Writer
}

// Build encodes every reference image in the manifest. When an image contains
// several faces the largest one is used. An identity none of whose images
// yields a face fails the whole build.
func Build(ctx context.Context, m Manifest, enc Encoder, opts BuildOptions) ([]KnownIdentity, error) {
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(m.ImageCount(),
			progressbar.OptionSetDescription("Encoding gallery"),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionShowCount(),
		)
		defer bar.Finish()
	}

	identities := make([]KnownIdentity, 0, len(m.Identities))
	for _, entry := range m.Identities {
		id := KnownIdentity{Label: entry.Label}
		for _, img := range entry.Images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path := m.resolve(img)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("identity %q: read %s: %w", entry.Label, path, err)
			}
			faces, err := enc.Detect(ctx, data)
			if err != nil {
				return nil, fmt.Errorf("identity %q: encode %s: %w", entry.Label, path, err)
			}
			if bar != nil {
				bar.Add(1)
			}
			if best, ok := largestFace(faces); ok {
				id.Encodings = append(id.Encodings, best.Encoding)
			}
		}
		if len(id.Encodings) == 0 {
			return nil, fmt.Errorf("identity %q: %w", entry.Label, ErrNoFace)
		}
		identities = append(identities, id)
	}
	return identities, nil
}

func largestFace(faces []types.Detection) (types.Detection, bool) {
	if len(faces) == 0 {
		return types.Detection{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Box.Area() > best.Box.Area() {
			best = f
		}
	}
	return best, true
}

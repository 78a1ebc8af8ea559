// Package project provides composition file handling and persistence.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"lens-composer/internal/layer"
	"lens-composer/internal/view"
	"lens-composer/pkg/geometry"
)

// Extension is the composition file suffix.
const Extension = ".lenscomp"

// File represents a saved composition (.lenscomp).
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	// Layers in draw order, bottom first. Source paths are stored
	// relative to the composition file.
	Layers []LayerRecord `json:"layers"`

	View view.State `json:"view"`
}

// LayerRecord is one layer's persisted placement and appearance. Pixels
// are not stored; the source file is re-decoded on load.
type LayerRecord struct {
	Name        string           `json:"name"`
	Source      string           `json:"source"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Position    geometry.Point2D `json:"position"`
	Rotation    float64          `json:"rotation"`
	Scale       float64          `json:"scale"`
	Opacity     float64          `json:"opacity"`
	Coefficient float64          `json:"coefficient"`
}

// New creates an empty composition.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		View:     view.New(),
	}
}

// Load reads a composition from a .lenscomp file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, err
	}
	if proj.View.Zoom == 0 {
		proj.View = view.New()
	}
	return &proj, nil
}

// Save writes the composition to a file, bumping the modified time.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetLayers records the given layers, storing each source path relative to
// the composition file when possible.
func (p *File) SetLayers(projectPath string, layers []layer.Layer) {
	p.Layers = p.Layers[:0]
	for _, l := range layers {
		source := l.Source
		if rel, err := filepath.Rel(filepath.Dir(projectPath), source); err == nil {
			source = rel
		}
		p.Layers = append(p.Layers, LayerRecord{
			Name:        l.Name,
			Source:      source,
			Width:       l.Width,
			Height:      l.Height,
			Position:    l.Position,
			Rotation:    l.Rotation,
			Scale:       l.Scale,
			Opacity:     l.Opacity,
			Coefficient: l.Coefficient,
		})
	}
}

// SourcePath resolves a layer's source path against the composition file
// location.
func (r *LayerRecord) SourcePath(projectPath string) string {
	if r.Source == "" || filepath.IsAbs(r.Source) {
		return r.Source
	}
	return filepath.Join(filepath.Dir(projectPath), r.Source)
}

package project

import (
	"path/filepath"
	"testing"

	"lens-composer/internal/layer"
	"lens-composer/pkg/geometry"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pano"+Extension)

	p := New("pano")
	p.SetLayers(path, []layer.Layer{
		{
			Name:        "left",
			Source:      filepath.Join(dir, "left.png"),
			Width:       640,
			Height:      480,
			Position:    geometry.Point2D{X: 10, Y: -4},
			Rotation:    0.2,
			Scale:       1.5,
			Opacity:     0.8,
			Coefficient: -0.3,
		},
	})
	p.View.Zoom = 2.5
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "pano" || len(loaded.Layers) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}
	r := loaded.Layers[0]
	if r.Scale != 1.5 || r.Coefficient != -0.3 || r.Position.X != 10 {
		t.Errorf("layer record = %+v", r)
	}
	if loaded.View.Zoom != 2.5 {
		t.Errorf("View.Zoom = %v, want 2.5", loaded.View.Zoom)
	}

	// Sources inside the project directory are stored relative and
	// resolve back to absolute.
	if r.Source != "left.png" {
		t.Errorf("stored source = %q, want relative left.png", r.Source)
	}
	if got := r.SourcePath(path); got != filepath.Join(dir, "left.png") {
		t.Errorf("SourcePath = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.lenscomp")); err == nil {
		t.Fatal("Load on missing file succeeded")
	}
}

func TestLoadDefaultsZeroZoom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old"+Extension)
	p := New("old")
	p.View.Zoom = 0
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.View.Zoom != 1 {
		t.Errorf("Zoom = %v, want defaulted 1", loaded.View.Zoom)
	}
}

// Command lenscorrect applies lens correction from the command line,
// either to a single image or to a saved composition.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"lens-composer/internal/app"
	"lens-composer/internal/export"
	"lens-composer/internal/imageio"
	"lens-composer/internal/layer"
	"lens-composer/internal/project"
	"lens-composer/internal/render/soft"
	"lens-composer/internal/session"
)

func main() {
	var (
		coefficient = flag.Float64("k", 0, "distortion coefficient, negative corrects barrel")
		zoom        = flag.Float64("zoom", 1, "center zoom for single-image correction")
		output      = flag.String("o", "out.png", "output PNG path")
		projectPath = flag.String("project", "", "render a saved composition instead of a single image")
		width       = flag.Int("w", 0, "output width (composition mode, 0 uses 1920)")
		height      = flag.Int("h", 0, "output height (composition mode, 0 uses 1080)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	app.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	if *projectPath != "" {
		err = renderProject(*projectPath, *output, *width, *height)
	} else {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: lenscorrect [flags] input-image")
			flag.PrintDefaults()
			os.Exit(2)
		}
		err = correctSingle(flag.Arg(0), *output, *coefficient, *zoom)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "lenscorrect:", err)
		os.Exit(1)
	}
}

// correctSingle applies the radial correction to one image at its own
// resolution.
func correctSingle(input, output string, coefficient, zoom float64) error {
	img, err := imageio.Decode(input)
	if err != nil {
		return err
	}

	r := soft.New()
	defer r.Close()
	s := session.NewSingle(r)
	defer s.Close()

	if err := s.SetImage(img); err != nil {
		return err
	}
	s.SetCoefficient(coefficient)
	s.SetZoom(zoom)

	b := img.Bounds()
	out, err := s.Render(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	return export.WritePNG(output, out)
}

// renderProject re-decodes every layer of the composition and exports the
// saved framing.
func renderProject(projectPath, output string, width, height int) error {
	proj, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}

	layers := make([]layer.Layer, 0, len(proj.Layers))
	for i, rec := range proj.Layers {
		layers = append(layers, layer.Layer{
			ID:          layer.ID(i + 1),
			Name:        rec.Name,
			Source:      rec.SourcePath(projectPath),
			Width:       rec.Width,
			Height:      rec.Height,
			Position:    rec.Position,
			Rotation:    rec.Rotation,
			Scale:       rec.Scale,
			Opacity:     rec.Opacity,
			Coefficient: rec.Coefficient,
		})
	}

	items, err := export.FromLayers(layers, imageio.Decode)
	if err != nil {
		return err
	}
	out, err := export.RenderComposite(items, proj.View, width, height)
	if err != nil {
		return err
	}
	return export.WritePNG(output, out)
}

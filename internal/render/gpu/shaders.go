package gpu

import (
	_ "embed"
)

// Embedded WGSL shader sources, compiled into modules at renderer init.

//go:embed shaders/correct.wgsl
var correctShaderSource string

//go:embed shaders/composite.wgsl
var compositeShaderSource string

// compositeParams matches the Params struct in composite.wgsl. inv0/inv1 are
// the top two rows of the inverse of screenProjection * view * model, padded
// to vec4 alignment.
type compositeParams struct {
	Inv0        [4]float32
	Inv1        [4]float32
	Coefficient float32
	Opacity     float32
	OutW        uint32
	OutH        uint32
	TexW        uint32
	TexH        uint32
	Pad0        uint32
	Pad1        uint32
}

// correctParams matches the Params struct in correct.wgsl.
type correctParams struct {
	Coefficient float32
	Zoom        float32
	OutW        uint32
	OutH        uint32
	TexW        uint32
	TexH        uint32
	Pad0        uint32
	Pad1        uint32
}

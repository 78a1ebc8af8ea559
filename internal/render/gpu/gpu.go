// Package gpu provides the wgpu/hal compute rendering backend. It owns one
// GPU device per renderer, compiles the two shader programs at init, and
// keeps uploaded textures as packed RGBA storage buffers on the device.
package gpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"lens-composer/internal/app"
	"lens-composer/internal/render"
)

const gpuTimeout = 5 * time.Second

// texture is one uploaded image kept as a packed RGBA storage buffer.
type texture struct {
	buf    hal.Buffer
	width  int
	height int
}

// Renderer is the GPU backend adapter.
type Renderer struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	correctShader   hal.ShaderModule
	compositeShader hal.ShaderModule
	bindLayout      hal.BindGroupLayout
	pipeLayout      hal.PipelineLayout
	correctPipe     hal.ComputePipeline
	compositePipe   hal.ComputePipeline

	textures map[render.TextureHandle]*texture
	nextID   render.TextureHandle
	closed   bool
}

var _ render.Renderer = (*Renderer)(nil)

// New initializes the GPU backend. Failure is fatal for the session: the
// caller must not retry, and a returned error means this backend cannot
// render at all.
func New() (*Renderer, error) {
	r := &Renderer{textures: make(map[render.TextureHandle]*texture)}
	if err := r.initGPU(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPU backend: %w", err)
	}
	return r, nil
}

func (r *Renderer) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	r.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		r.instance = nil
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		r.instance = nil
		return fmt.Errorf("open device: %w", err)
	}
	r.device = openDev.Device
	r.queue = openDev.Queue
	if err := r.createPipelines(); err != nil {
		r.device.Destroy()
		r.device = nil
		r.queue = nil
		r.instance.Destroy()
		r.instance = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	app.Logger().Info("GPU renderer initialized", "adapter", selected.Info.Name)
	return nil
}

// createPipelines compiles both shader programs. Both passes share one bind
// group layout: uniform params, read-only source texels, read-write output.
func (r *Renderer) createPipelines() error {
	correctShader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "lens_correct",
		Source: hal.ShaderSource{WGSL: correctShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile correct shader: %w", err)
	}
	r.correctShader = correctShader

	compositeShader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "lens_composite",
		Source: hal.ShaderSource{WGSL: compositeShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile composite shader: %w", err)
	}
	r.compositeShader = compositeShader

	bindLayout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "lens_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "lens_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	correctPipe, err := r.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "lens_correct_pipeline", Layout: r.pipeLayout,
		Compute: hal.ComputeState{Module: r.correctShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create correct pipeline: %w", err)
	}
	r.correctPipe = correctPipe

	compositePipe, err := r.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "lens_composite_pipeline", Layout: r.pipeLayout,
		Compute: hal.ComputeState{Module: r.compositeShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create composite pipeline: %w", err)
	}
	r.compositePipe = compositePipe

	return nil
}

func (r *Renderer) destroyPipelines() {
	if r.device == nil {
		return
	}
	if r.compositePipe != nil {
		r.device.DestroyComputePipeline(r.compositePipe)
	}
	if r.correctPipe != nil {
		r.device.DestroyComputePipeline(r.correctPipe)
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
	}
	if r.bindLayout != nil {
		r.device.DestroyBindGroupLayout(r.bindLayout)
	}
	if r.compositeShader != nil {
		r.device.DestroyShaderModule(r.compositeShader)
	}
	if r.correctShader != nil {
		r.device.DestroyShaderModule(r.correctShader)
	}
}

// UploadTexture packs the pixels and copies them into a device-local
// storage buffer.
func (r *Renderer) UploadTexture(img *image.RGBA) (render.TextureHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return render.NoTexture, render.ErrClosed
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return render.NoTexture, fmt.Errorf("empty image %dx%d", w, h)
	}
	packed := packPixels(img)
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "lens_texture", Size: uint64(len(packed)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return render.NoTexture, fmt.Errorf("failed to create texture buffer: %w", err)
	}
	r.queue.WriteBuffer(buf, 0, packed)
	r.nextID++
	r.textures[r.nextID] = &texture{buf: buf, width: w, height: h}
	app.Logger().Debug("texture uploaded", "handle", r.nextID, "size", fmt.Sprintf("%dx%d", w, h))
	return r.nextID, nil
}

// ReleaseTexture frees the texture buffer. Unknown handles are a safe no-op.
func (r *Renderer) ReleaseTexture(h render.TextureHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tex, ok := r.textures[h]
	if !ok {
		return
	}
	delete(r.textures, h)
	if r.closed {
		return
	}
	r.device.DestroyBuffer(tex.buf)
}

// Close releases every texture, both pipelines and the device.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for h, tex := range r.textures {
		r.device.DestroyBuffer(tex.buf)
		delete(r.textures, h)
	}
	r.destroyPipelines()
	if r.device != nil {
		r.device.Destroy()
		r.device = nil
	}
	if r.instance != nil {
		r.instance.Destroy()
		r.instance = nil
	}
	r.queue = nil
	r.closed = true
}

// DrawFrame composites the frame's items in ascending z order. Each item
// gets its own compute pass in one command encoder; the storage-buffer
// barrier between passes preserves compositing order.
func (r *Renderer) DrawFrame(f render.Frame) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, render.ErrClosed
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", f.Width, f.Height)
	}

	w, h := uint32(f.Width), uint32(f.Height)
	pixelBufSize := uint64(w) * uint64(h) * 4

	paramSets := make([][]byte, 0, len(f.Items))
	texBufs := make([]*texture, 0, len(f.Items))
	for _, item := range f.Items {
		tex, ok := r.textures[item.Texture]
		if !ok {
			return nil, fmt.Errorf("unknown texture handle %d", item.Texture)
		}
		final := render.FinalTransform(f.Width, f.Height, f.View, item.Model)
		inv, ok := final.Inverse()
		if !ok {
			continue
		}
		p := compositeParams{
			Inv0:        [4]float32{float32(inv.M[0]), float32(inv.M[1]), float32(inv.M[2]), 0},
			Inv1:        [4]float32{float32(inv.M[3]), float32(inv.M[4]), float32(inv.M[5]), 0},
			Coefficient: float32(item.Coefficient),
			Opacity:     float32(item.Opacity),
			OutW:        w, OutH: h,
			TexW: uint32(tex.width), TexH: uint32(tex.height),
		}
		paramSets = append(paramSets, append([]byte(nil), structToBytes(unsafe.Pointer(&p), unsafe.Sizeof(p))...))
		texBufs = append(texBufs, tex)
	}

	out := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if len(paramSets) == 0 {
		return out, nil
	}
	if err := r.dispatch(r.compositePipe, paramSets, texBufs, w, h, pixelBufSize, out.Pix); err != nil {
		return nil, err
	}
	return out, nil
}

// DrawSingle renders the single-image correction program.
func (r *Renderer) DrawSingle(h render.TextureHandle, zoom, coefficient float64, outW, outH int) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, render.ErrClosed
	}
	tex, ok := r.textures[h]
	if !ok {
		return nil, fmt.Errorf("unknown texture handle %d", h)
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", outW, outH)
	}
	if zoom <= 0 {
		return nil, fmt.Errorf("invalid zoom %v", zoom)
	}

	w, hh := uint32(outW), uint32(outH)
	p := correctParams{
		Coefficient: float32(coefficient),
		Zoom:        float32(zoom),
		OutW:        w, OutH: hh,
		TexW: uint32(tex.width), TexH: uint32(tex.height),
	}
	params := append([]byte(nil), structToBytes(unsafe.Pointer(&p), unsafe.Sizeof(p))...)

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	pixelBufSize := uint64(w) * uint64(hh) * 4
	if err := r.dispatch(r.correctPipe, [][]byte{params}, []*texture{tex}, w, hh, pixelBufSize, out.Pix); err != nil {
		return nil, err
	}
	return out, nil
}

// dispatch runs one compute pass per parameter set against the given
// pipeline, reads the output buffer back through a staging buffer behind a
// fence, and unpacks it into dst.
func (r *Renderer) dispatch(pipe hal.ComputePipeline, paramSets [][]byte, texs []*texture, w, h uint32, pixelBufSize uint64, dst []uint8) error {
	storageBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "lens_output", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create output buffer: %w", err)
	}
	defer r.device.DestroyBuffer(storageBuf)

	stagingBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "lens_staging", Size: pixelBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(stagingBuf)

	// Clear the output to fully transparent before the first pass.
	r.queue.WriteBuffer(storageBuf, 0, make([]byte, pixelBufSize))

	uniformBufs := make([]hal.Buffer, 0, len(paramSets))
	bindGroups := make([]hal.BindGroup, 0, len(paramSets))
	defer func() {
		for _, bg := range bindGroups {
			r.device.DestroyBindGroup(bg)
		}
		for _, ub := range uniformBufs {
			r.device.DestroyBuffer(ub)
		}
	}()
	for i, params := range paramSets {
		ub, err := r.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "lens_params", Size: uint64(len(params)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		uniformBufs = append(uniformBufs, ub)
		r.queue.WriteBuffer(ub, 0, params)

		tex := texs[i]
		texSize := uint64(tex.width) * uint64(tex.height) * 4
		bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "lens_bind", Layout: r.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: uint64(len(params))}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: tex.buf.NativeHandle(), Offset: 0, Size: texSize}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: storageBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
			},
		})
		if err != nil {
			return fmt.Errorf("create bind group %d: %w", i, err)
		}
		bindGroups = append(bindGroups, bg)
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "lens_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("lens_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	for _, bg := range bindGroups {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "lens_pass"})
		pass.SetPipeline(pipe)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch((w+7)/8, (h+7)/8, 1)
		pass.End()
	}
	encoder.CopyBufferToBuffer(storageBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixelBufSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)
	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := r.device.Wait(fence, 1, gpuTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, pixelBufSize)
	if err := r.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackPixels(readback, dst)
	return nil
}

func structToBytes(ptr unsafe.Pointer, size uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), size)
}

// packPixels serializes RGBA pixels into the little-endian u32 layout the
// shaders index.
func packPixels(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[(y+b.Min.Y-img.Rect.Min.Y)*img.Stride:]
		for x := 0; x < w; x++ {
			si := (x + b.Min.X - img.Rect.Min.X) * 4
			packed := uint32(row[si]) | uint32(row[si+1])<<8 | uint32(row[si+2])<<16 | uint32(row[si+3])<<24
			binary.LittleEndian.PutUint32(out[i:], packed)
			i += 4
		}
	}
	return out
}

func unpackPixels(packed []byte, dst []uint8) {
	n := len(packed) / 4
	for i := 0; i < n; i++ {
		val := binary.LittleEndian.Uint32(packed[i*4:])
		di := i * 4
		dst[di] = uint8(val & 0xFF)
		dst[di+1] = uint8((val >> 8) & 0xFF)
		dst[di+2] = uint8((val >> 16) & 0xFF)
		dst[di+3] = uint8((val >> 24) & 0xFF)
	}
}

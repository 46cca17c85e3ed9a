package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
)

// Wire format constants. All integers are little-endian; strings are a
// uint16 length followed by UTF-8 bytes; blobs are a uint32 length
// followed by raw bytes.
const (
	batchMagic    = "LMCB"
	responseMagic = "LMRB"
	wireVersion   = 1

	// minCommandSize is the smallest encoded command: op, kind, and the
	// reserved byte with no payload. A batch header claiming more
	// commands than the remaining bytes could hold at this size is
	// rejected before any allocation sized from it.
	minCommandSize = 4

	// minResponseSize is the smallest encoded response: op, kind, flags,
	// id, empty message, zero entries.
	minResponseSize = 18
)

// Decode failure classes. Any of them rejects the whole batch; no
// partial application.
var (
	// ErrBadMagic is returned when a batch does not start with the
	// expected magic bytes.
	ErrBadMagic = errors.New("bad batch magic")

	// ErrBadVersion is returned for an unsupported wire version.
	ErrBadVersion = errors.New("unsupported wire version")

	// ErrTruncated is returned when a batch ends mid-field.
	ErrTruncated = errors.New("truncated batch")

	// ErrUnknownOp is returned for an unrecognized operation code.
	ErrUnknownOp = errors.New("unknown operation")

	// ErrUnknownKind is returned for an unrecognized resource kind.
	ErrUnknownKind = errors.New("unknown resource kind")

	// ErrOversized is returned when an encoded field exceeds its length
	// prefix's range.
	ErrOversized = errors.New("field too large to encode")
)

type writer struct {
	buf []byte
	err error
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) str(s string) {
	if len(s) > math.MaxUint16 {
		w.err = fmt.Errorf("%w: string length %d", ErrOversized, len(s))
		return
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) blob(b []byte) {
	if len(b) > math.MaxUint32 {
		w.err = fmt.Errorf("%w: blob length %d", ErrOversized, len(b))
		return
	}
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) transform(t common.Transform) {
	for _, v := range t.Position {
		w.f32(v)
	}
	for _, v := range t.Rotation {
		w.f32(v)
	}
	for _, v := range t.Scale {
		w.f32(v)
	}
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrTruncated
	}
}

func (r *reader) u8() uint8 {
	if r.err != nil || r.remaining() < 1 {
		r.fail()
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil || r.remaining() < 2 {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.remaining() < 4 {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.remaining() < 8 {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) str() string {
	n := int(r.u16())
	if r.err != nil || r.remaining() < n {
		r.fail()
		return ""
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return s
}

func (r *reader) blob() []byte {
	n := int(r.u32())
	if r.err != nil || r.remaining() < n {
		r.fail()
		return nil
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+n])
	r.off += n
	return b
}

func (r *reader) transform() common.Transform {
	var t common.Transform
	for i := range t.Position {
		t.Position[i] = r.f32()
	}
	for i := range t.Rotation {
		t.Rotation[i] = r.f32()
	}
	for i := range t.Scale {
		t.Scale[i] = r.f32()
	}
	return t
}

// EncodeBatch serializes a command batch into the wire form DecodeBatch
// accepts. The encoder exists so controllers written against this module
// need no hand-rolled serialization, and so tests exercise both
// directions of the format.
//
// Parameters:
//   - commands: the commands in submission order
//
// Returns:
//   - []byte: the encoded batch
//   - error: an error if a field exceeds the format's limits
func EncodeBatch(commands []Command) ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 64)}
	w.buf = append(w.buf, batchMagic...)
	w.u16(wireVersion)
	w.u32(uint32(len(commands)))

	for i := range commands {
		if err := encodeCommand(w, &commands[i]); err != nil {
			return nil, err
		}
		if w.err != nil {
			return nil, w.err
		}
	}
	return w.buf, nil
}

func encodeCommand(w *writer, cmd *Command) error {
	w.u16(uint16(cmd.Op))
	w.u8(uint8(cmd.Kind))
	w.u8(0)

	switch cmd.Op {
	case OpCreate, OpUpdate:
		w.u64(uint64(cmd.ID))
		w.str(cmd.Label)
		return encodeSpec(w, cmd)
	case OpDispose:
		w.u64(uint64(cmd.ID))
	case OpList:
	case OpUploadBuffer:
		if cmd.Upload == nil {
			return fmt.Errorf("upload command without payload")
		}
		w.u32(cmd.Upload.BufferID)
		w.u8(cmd.Upload.Kind)
		w.blob(cmd.Upload.Data)
	case OpUploadDiscardAll:
	case OpRenderGraphSet:
		if cmd.RenderGraph == nil {
			return fmt.Errorf("render graph command without payload")
		}
		encodeGraph(w, cmd.RenderGraph)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOp, cmd.Op)
	}
	return nil
}

func encodeSpec(w *writer, cmd *Command) error {
	switch cmd.Kind {
	case common.KindGeometry:
		if cmd.Geometry == nil {
			return fmt.Errorf("geometry command without payload")
		}
		w.u32(cmd.Geometry.VertexBuffer)
		w.u32(cmd.Geometry.IndexBuffer)
		w.u32(cmd.Geometry.VertexStride)
		w.u32(cmd.Geometry.IndexCount)
	case common.KindTexture:
		if cmd.Texture == nil {
			return fmt.Errorf("texture command without payload")
		}
		w.u32(cmd.Texture.PixelBuffer)
		w.u32(cmd.Texture.Width)
		w.u32(cmd.Texture.Height)
		w.u32(cmd.Texture.Format)
	case common.KindShader:
		if cmd.Shader == nil {
			return fmt.Errorf("shader command without payload")
		}
		w.u32(cmd.Shader.SourceBuffer)
		w.u8(uint8(cmd.Shader.Stage))
		w.str(cmd.Shader.EntryPoint)
	case common.KindMaterial:
		if cmd.Material == nil {
			return fmt.Errorf("material command without payload")
		}
		m := cmd.Material
		w.u8(uint8(m.Surface))
		for _, v := range m.BaseColor {
			w.f32(v)
		}
		w.f32(m.Metallic)
		w.f32(m.Roughness)
		w.f32(m.AlphaCutoff)
		w.u64(uint64(m.DiffuseTexture))
		w.u64(uint64(m.NormalTexture))
		w.u64(uint64(m.ShaderRef))
	case common.KindCamera:
		if cmd.Camera == nil {
			return fmt.Errorf("camera command without payload")
		}
		c := cmd.Camera
		w.transform(c.Transform)
		w.u32(uint32(c.LayerMask))
		w.f32(c.Fov)
		w.f32(c.Aspect)
		w.f32(c.Near)
		w.f32(c.Far)
	case common.KindModel:
		if cmd.Model == nil {
			return fmt.Errorf("model command without payload")
		}
		m := cmd.Model
		w.transform(m.Transform)
		w.u32(uint32(m.LayerMask))
		w.u64(uint64(m.GeometryID))
		w.u64(uint64(m.MaterialID))
	case common.KindLight:
		if cmd.Light == nil {
			return fmt.Errorf("light command without payload")
		}
		l := cmd.Light
		w.transform(l.Transform)
		w.u32(uint32(l.LayerMask))
		w.u8(l.Kind)
		for _, v := range l.Color {
			w.f32(v)
		}
		w.f32(l.Intensity)
		w.f32(l.Range)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, cmd.Kind)
	}
	return nil
}

func encodeGraph(w *writer, spec *GraphSpec) {
	w.u32(spec.WindowID)
	w.u64(spec.Desc.GraphID)
	if spec.Desc.FallbackAllowed {
		w.u8(1)
	} else {
		w.u8(0)
	}

	w.u16(uint16(len(spec.Desc.Nodes)))
	for _, node := range spec.Desc.Nodes {
		w.u32(node.NodeID)
		w.str(node.PassID)
		w.u16(uint16(len(node.Inputs)))
		for _, res := range node.Inputs {
			w.u32(uint32(res))
		}
		w.u16(uint16(len(node.Outputs)))
		for _, res := range node.Outputs {
			w.u32(uint32(res))
		}
		w.blob(node.Params)
	}

	w.u16(uint16(len(spec.Desc.Edges)))
	for _, edge := range spec.Desc.Edges {
		w.u32(edge.From)
		w.u32(edge.To)
	}

	w.u16(uint16(len(spec.Desc.Resources)))
	for _, res := range spec.Desc.Resources {
		w.u32(uint32(res.ResID))
		w.str(res.Label)
		w.u32(res.Width)
		w.u32(res.Height)
		w.u32(uint32(res.Format))
		w.u32(uint32(res.Usage))
		w.u8(uint8(res.Lifetime))
		w.u32(res.AliasGroup)
	}
}

// DecodeBatch parses a wire batch into typed commands. Any malformation
// rejects the whole batch; the caller applies nothing from it.
//
// Parameters:
//   - data: the encoded batch
//
// Returns:
//   - []Command: the decoded commands in submission order
//   - error: the first decode failure
func DecodeBatch(data []byte) ([]Command, error) {
	r := &reader{buf: data}
	if r.remaining() < len(batchMagic) || string(r.buf[:len(batchMagic)]) != batchMagic {
		return nil, ErrBadMagic
	}
	r.off = len(batchMagic)
	if version := r.u16(); version != wireVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	// The count is untrusted input: a forged header must not drive a huge
	// preallocation, so capacity is bounded by what the payload could
	// possibly hold and the slice grows by append past that.
	count := int(r.u32())
	if count > r.remaining()/minCommandSize {
		return nil, fmt.Errorf("%w: %d commands in %d bytes", ErrTruncated, count, r.remaining())
	}
	commands := make([]Command, 0, count)
	for i := 0; i < count; i++ {
		cmd, err := decodeCommand(r)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		commands = append(commands, cmd)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadMagic, r.remaining())
	}
	return commands, nil
}

func decodeCommand(r *reader) (Command, error) {
	cmd := Command{
		Op:   Op(r.u16()),
		Kind: common.ResourceKind(r.u8()),
	}
	r.u8() // reserved

	switch cmd.Op {
	case OpCreate, OpUpdate:
		cmd.ID = common.LogicalID(r.u64())
		cmd.Label = r.str()
		if err := decodeSpec(r, &cmd); err != nil {
			return cmd, err
		}
	case OpDispose:
		if !cmd.Kind.Valid() {
			return cmd, fmt.Errorf("%w: %d", ErrUnknownKind, cmd.Kind)
		}
		cmd.ID = common.LogicalID(r.u64())
	case OpList:
		if !cmd.Kind.Valid() {
			return cmd, fmt.Errorf("%w: %d", ErrUnknownKind, cmd.Kind)
		}
	case OpUploadBuffer:
		cmd.Upload = &UploadSpec{
			BufferID: r.u32(),
			Kind:     r.u8(),
			Data:     r.blob(),
		}
	case OpUploadDiscardAll:
	case OpRenderGraphSet:
		cmd.RenderGraph = decodeGraph(r)
	default:
		return cmd, fmt.Errorf("%w: %d", ErrUnknownOp, cmd.Op)
	}
	return cmd, r.err
}

func decodeSpec(r *reader, cmd *Command) error {
	switch cmd.Kind {
	case common.KindGeometry:
		cmd.Geometry = &GeometrySpec{
			VertexBuffer: r.u32(),
			IndexBuffer:  r.u32(),
			VertexStride: r.u32(),
			IndexCount:   r.u32(),
		}
	case common.KindTexture:
		cmd.Texture = &TextureSpec{
			PixelBuffer: r.u32(),
			Width:       r.u32(),
			Height:      r.u32(),
			Format:      r.u32(),
		}
	case common.KindShader:
		cmd.Shader = &ShaderSpec{
			SourceBuffer: r.u32(),
			Stage:        registry.ShaderStage(r.u8()),
			EntryPoint:   r.str(),
		}
	case common.KindMaterial:
		m := &registry.Material{}
		m.Surface = registry.SurfaceType(r.u8())
		for i := range m.BaseColor {
			m.BaseColor[i] = r.f32()
		}
		m.Metallic = r.f32()
		m.Roughness = r.f32()
		m.AlphaCutoff = r.f32()
		m.DiffuseTexture = common.LogicalID(r.u64())
		m.NormalTexture = common.LogicalID(r.u64())
		m.ShaderRef = common.LogicalID(r.u64())
		cmd.Material = m
	case common.KindCamera:
		cmd.Camera = &CameraSpec{
			Transform: r.transform(),
			LayerMask: common.LayerMask(r.u32()),
			Fov:       r.f32(),
			Aspect:    r.f32(),
			Near:      r.f32(),
			Far:       r.f32(),
		}
	case common.KindModel:
		cmd.Model = &ModelSpec{
			Transform:  r.transform(),
			LayerMask:  common.LayerMask(r.u32()),
			GeometryID: common.LogicalID(r.u64()),
			MaterialID: common.LogicalID(r.u64()),
		}
	case common.KindLight:
		l := &LightSpec{
			Transform: r.transform(),
			LayerMask: common.LayerMask(r.u32()),
			Kind:      r.u8(),
		}
		for i := range l.Color {
			l.Color[i] = r.f32()
		}
		l.Intensity = r.f32()
		l.Range = r.f32()
		cmd.Light = l
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, cmd.Kind)
	}
	return nil
}

func decodeGraph(r *reader) *GraphSpec {
	spec := &GraphSpec{
		WindowID: r.u32(),
		Desc: render_graph.GraphDesc{
			GraphID: r.u64(),
		},
	}
	spec.Desc.FallbackAllowed = r.u8() != 0

	nodeCount := int(r.u16())
	for i := 0; i < nodeCount && r.err == nil; i++ {
		node := render_graph.NodeDesc{
			NodeID: r.u32(),
			PassID: r.str(),
		}
		inputCount := int(r.u16())
		for j := 0; j < inputCount && r.err == nil; j++ {
			node.Inputs = append(node.Inputs, render_graph.ResID(r.u32()))
		}
		outputCount := int(r.u16())
		for j := 0; j < outputCount && r.err == nil; j++ {
			node.Outputs = append(node.Outputs, render_graph.ResID(r.u32()))
		}
		node.Params = r.blob()
		spec.Desc.Nodes = append(spec.Desc.Nodes, node)
	}

	edgeCount := int(r.u16())
	for i := 0; i < edgeCount && r.err == nil; i++ {
		spec.Desc.Edges = append(spec.Desc.Edges, render_graph.EdgeDesc{
			From: r.u32(),
			To:   r.u32(),
		})
	}

	resourceCount := int(r.u16())
	for i := 0; i < resourceCount && r.err == nil; i++ {
		decl := render_graph.ResourceDecl{
			ResID:  render_graph.ResID(r.u32()),
			Label:  r.str(),
			Width:  r.u32(),
			Height: r.u32(),
		}
		decl.Format = wgpu.TextureFormat(r.u32())
		decl.Usage = wgpu.TextureUsage(r.u32())
		decl.Lifetime = render_graph.Lifetime(r.u8())
		decl.AliasGroup = r.u32()
		spec.Desc.Resources = append(spec.Desc.Resources, decl)
	}

	return spec
}

// EncodeResponses serializes a tick's command results.
//
// Parameters:
//   - responses: the results in submission order
//
// Returns:
//   - []byte: the encoded response batch
//   - error: an error if a field exceeds the format's limits
func EncodeResponses(responses []Response) ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 64)}
	w.buf = append(w.buf, responseMagic...)
	w.u16(wireVersion)
	w.u32(uint32(len(responses)))

	for i := range responses {
		resp := &responses[i]
		w.u16(uint16(resp.Op))
		w.u8(uint8(resp.Kind))
		var flags uint8
		if resp.Success {
			flags |= 1
		}
		if resp.FallbackUsed {
			flags |= 2
		}
		w.u8(flags)
		w.u64(uint64(resp.ID))
		w.str(resp.Message)
		w.u32(uint32(len(resp.Entries)))
		for _, entry := range resp.Entries {
			w.u64(uint64(entry.ID))
			w.str(entry.Label)
		}
		if w.err != nil {
			return nil, w.err
		}
	}
	return w.buf, nil
}

// DecodeResponses parses an encoded response batch.
//
// Parameters:
//   - data: the encoded response batch
//
// Returns:
//   - []Response: the decoded results
//   - error: the first decode failure
func DecodeResponses(data []byte) ([]Response, error) {
	r := &reader{buf: data}
	if r.remaining() < len(responseMagic) || string(r.buf[:len(responseMagic)]) != responseMagic {
		return nil, ErrBadMagic
	}
	r.off = len(responseMagic)
	if version := r.u16(); version != wireVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	count := int(r.u32())
	if count > r.remaining()/minResponseSize {
		return nil, fmt.Errorf("%w: %d responses in %d bytes", ErrTruncated, count, r.remaining())
	}
	responses := make([]Response, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		resp := Response{
			Op:   Op(r.u16()),
			Kind: common.ResourceKind(r.u8()),
		}
		flags := r.u8()
		resp.Success = flags&1 != 0
		resp.FallbackUsed = flags&2 != 0
		resp.ID = common.LogicalID(r.u64())
		resp.Message = r.str()
		entryCount := int(r.u32())
		for j := 0; j < entryCount && r.err == nil; j++ {
			resp.Entries = append(resp.Entries, registry.Entry{
				ID:    common.LogicalID(r.u64()),
				Label: r.str(),
			})
		}
		responses = append(responses, resp)
	}
	if r.err != nil {
		return nil, r.err
	}
	return responses, nil
}

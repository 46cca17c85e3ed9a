package render_graph

import "github.com/cogentcore/webgpu/wgpu"

// Resource ids used by the built-in graph.
const (
	fallbackColor ResID = 1
	fallbackDepth ResID = 2
)

// FallbackGraph returns the built-in three-stage pipeline substituted when
// a submitted graph fails validation and permits fallback: a forward pass
// into an intermediate color/depth pair, a transparent pass over the same
// targets, and a compose pass copying the color target to the surface.
//
// Returns:
//   - GraphDesc: the built-in graph description
func FallbackGraph() GraphDesc {
	return GraphDesc{
		Nodes: []NodeDesc{
			{NodeID: 1, PassID: "forward", Outputs: []ResID{fallbackColor, fallbackDepth}},
			{NodeID: 2, PassID: "transparent", Outputs: []ResID{fallbackColor, fallbackDepth}},
			{NodeID: 3, PassID: "compose", Inputs: []ResID{fallbackColor}, Outputs: []ResID{ResSurface}},
		},
		Edges: []EdgeDesc{
			{From: 1, To: 2},
			{From: 2, To: 3},
		},
		Resources: []ResourceDecl{
			{
				ResID:  fallbackColor,
				Label:  "Fallback Color",
				Format: wgpu.TextureFormatRGBA8Unorm,
				Usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
			},
			{
				ResID:  fallbackDepth,
				Label:  "Fallback Depth",
				Format: wgpu.TextureFormatDepth24Plus,
				Usage:  wgpu.TextureUsageRenderAttachment,
			},
		},
	}
}

package core

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/command"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/registry"
)

// apply executes one command against the core's tables. Failures are
// local to the command; the rest of the batch still applies.
func (c *core) apply(cmd *command.Command) command.Response {
	resp := command.Response{
		Op:      cmd.Op,
		Kind:    cmd.Kind,
		ID:      cmd.ID,
		Success: true,
	}

	switch cmd.Op {
	case command.OpCreate, command.OpUpdate:
		if err := c.applyPut(cmd); err != nil {
			resp.Success = false
			resp.Message = err.Error()
		}
	case command.OpDispose:
		if !c.applyDispose(cmd.Kind, cmd.ID) {
			resp.Success = false
			resp.Message = fmt.Sprintf("%s %d not found", cmd.Kind, cmd.ID)
		} else {
			c.events = append(c.events, Event{
				Kind:         EventResourceDisposed,
				ResourceKind: cmd.Kind,
				ID:           cmd.ID,
			})
		}
	case command.OpList:
		resp.Entries = c.applyList(cmd.Kind)
	case command.OpUploadBuffer:
		if cmd.Upload == nil {
			resp.Success = false
			resp.Message = "upload command without payload"
			break
		}
		err := c.uploads.Insert(common.LogicalID(cmd.Upload.BufferID), common.ResourceKind(cmd.Upload.Kind), cmd.Upload.Data)
		if err != nil {
			resp.Success = false
			resp.Message = err.Error()
		}
	case command.OpUploadDiscardAll:
		discarded := c.uploads.DiscardAll()
		resp.Message = fmt.Sprintf("discarded %d buffers", discarded)
	case command.OpRenderGraphSet:
		c.applyRenderGraphSet(cmd, &resp)
	default:
		resp.Success = false
		resp.Message = fmt.Sprintf("unknown operation %d", cmd.Op)
	}

	return resp
}

// applyPut handles create and update for every kind. Resources are
// register-replaced, bumping their generation; components are patched in
// place under their existing id.
func (c *core) applyPut(cmd *command.Command) error {
	switch cmd.Kind {
	case common.KindGeometry:
		if cmd.Geometry == nil {
			return fmt.Errorf("geometry command without payload")
		}
		if cmd.Geometry.IndexCount > 0 && cmd.Geometry.IndexBuffer == 0 {
			return fmt.Errorf("geometry %d declares %d indices without an index buffer", cmd.ID, cmd.Geometry.IndexCount)
		}
		vertexData, err := c.uploads.Take(common.LogicalID(cmd.Geometry.VertexBuffer))
		if err != nil {
			return fmt.Errorf("vertex buffer %d: %w", cmd.Geometry.VertexBuffer, err)
		}
		var indexData []byte
		if cmd.Geometry.IndexBuffer != 0 {
			indexData, err = c.uploads.Take(common.LogicalID(cmd.Geometry.IndexBuffer))
			if err != nil {
				return fmt.Errorf("index buffer %d: %w", cmd.Geometry.IndexBuffer, err)
			}
		}
		c.resources.Geometries.Register(cmd.ID, cmd.Label, registry.Geometry{
			VertexData:   vertexData,
			VertexStride: cmd.Geometry.VertexStride,
			IndexData:    indexData,
			IndexCount:   cmd.Geometry.IndexCount,
		})
	case common.KindTexture:
		if cmd.Texture == nil {
			return fmt.Errorf("texture command without payload")
		}
		pixels, err := c.uploads.Take(common.LogicalID(cmd.Texture.PixelBuffer))
		if err != nil {
			return fmt.Errorf("pixel buffer %d: %w", cmd.Texture.PixelBuffer, err)
		}
		expected := int(cmd.Texture.Width) * int(cmd.Texture.Height) * 4
		if len(pixels) != expected {
			return fmt.Errorf("pixel buffer %d holds %d bytes, want %d for %dx%d",
				cmd.Texture.PixelBuffer, len(pixels), expected, cmd.Texture.Width, cmd.Texture.Height)
		}
		c.resources.Textures.Register(cmd.ID, cmd.Label, registry.Texture{
			Pixels: pixels,
			Width:  cmd.Texture.Width,
			Height: cmd.Texture.Height,
			Format: wgpu.TextureFormat(cmd.Texture.Format),
		})
	case common.KindShader:
		if cmd.Shader == nil {
			return fmt.Errorf("shader command without payload")
		}
		source, err := c.uploads.Take(common.LogicalID(cmd.Shader.SourceBuffer))
		if err != nil {
			return fmt.Errorf("source buffer %d: %w", cmd.Shader.SourceBuffer, err)
		}
		entryPoint := cmd.Shader.EntryPoint
		if entryPoint == "" {
			entryPoint = "main"
		}
		c.resources.Shaders.Register(cmd.ID, cmd.Label, registry.Shader{
			Source:     string(source),
			Stage:      cmd.Shader.Stage,
			EntryPoint: entryPoint,
		})
	case common.KindMaterial:
		if cmd.Material == nil {
			return fmt.Errorf("material command without payload")
		}
		c.resources.Materials.Register(cmd.ID, cmd.Label, *cmd.Material)
	case common.KindCamera:
		if cmd.Camera == nil {
			return fmt.Errorf("camera command without payload")
		}
		c.components.Cameras.Put(cmd.ID, cmd.Label, component.NewCamera(
			component.WithCameraTransform(cmd.Camera.Transform),
			component.WithCameraLayerMask(cmd.Camera.LayerMask),
			component.WithCameraLens(cmd.Camera.Fov, cmd.Camera.Aspect, cmd.Camera.Near, cmd.Camera.Far),
		))
	case common.KindModel:
		if cmd.Model == nil {
			return fmt.Errorf("model command without payload")
		}
		c.components.Models.Put(cmd.ID, cmd.Label, component.NewModel(
			cmd.Model.GeometryID, cmd.Model.MaterialID,
			component.WithModelTransform(cmd.Model.Transform),
			component.WithModelLayerMask(cmd.Model.LayerMask),
		))
	case common.KindLight:
		if cmd.Light == nil {
			return fmt.Errorf("light command without payload")
		}
		c.components.Lights.Put(cmd.ID, cmd.Label, component.NewLight(
			component.LightKind(cmd.Light.Kind),
			component.WithLightTransform(cmd.Light.Transform),
			component.WithLightLayerMask(cmd.Light.LayerMask),
			component.WithLightColor(cmd.Light.Color, cmd.Light.Intensity),
			component.WithLightRange(cmd.Light.Range),
		))
	default:
		return fmt.Errorf("unknown resource kind %d", cmd.Kind)
	}
	return nil
}

func (c *core) applyDispose(kind common.ResourceKind, id common.LogicalID) bool {
	switch kind {
	case common.KindGeometry:
		return c.resources.Geometries.Dispose(id)
	case common.KindTexture:
		return c.resources.Textures.Dispose(id)
	case common.KindShader:
		return c.resources.Shaders.Dispose(id)
	case common.KindMaterial:
		return c.resources.Materials.Dispose(id)
	case common.KindCamera:
		return c.components.Cameras.Dispose(id)
	case common.KindModel:
		return c.components.Models.Dispose(id)
	case common.KindLight:
		return c.components.Lights.Dispose(id)
	}
	return false
}

func (c *core) applyList(kind common.ResourceKind) []registry.Entry {
	switch kind {
	case common.KindGeometry:
		return c.resources.Geometries.List()
	case common.KindTexture:
		return c.resources.Textures.List()
	case common.KindShader:
		return c.resources.Shaders.List()
	case common.KindMaterial:
		return c.resources.Materials.List()
	case common.KindCamera:
		return c.components.Cameras.List()
	case common.KindModel:
		return c.components.Models.List()
	case common.KindLight:
		return c.components.Lights.List()
	}
	return nil
}

// applyRenderGraphSet compiles a submitted graph and binds the outcome to
// its window. A rejected description with fallback permission binds the
// built-in graph; without permission the window renders nothing until a
// valid description arrives.
func (c *core) applyRenderGraphSet(cmd *command.Command, resp *command.Response) {
	if cmd.RenderGraph == nil {
		resp.Success = false
		resp.Message = "render graph command without payload"
		return
	}
	spec := cmd.RenderGraph

	if _, ok := c.windows.Get(spec.WindowID); !ok {
		resp.Success = false
		resp.Message = fmt.Sprintf("window %d not registered", spec.WindowID)
		return
	}

	_, err := c.compiler.Compile(spec.Desc)
	if err == nil {
		c.bindings[spec.WindowID] = &windowBinding{graphID: spec.Desc.GraphID, valid: true}
		if c.metrics != nil {
			c.metrics.ObserveGraph(true)
		}
		return
	}

	if c.metrics != nil {
		c.metrics.ObserveGraph(false)
	}
	resp.Message = err.Error()

	if spec.Desc.FallbackAllowed {
		c.bindings[spec.WindowID] = &windowBinding{graphID: spec.Desc.GraphID, useFallback: true, valid: true}
		resp.FallbackUsed = true
		c.events = append(c.events, Event{
			Kind:     EventFallbackGraphEngaged,
			WindowID: spec.WindowID,
			GraphID:  spec.Desc.GraphID,
		})
		return
	}

	c.bindings[spec.WindowID] = &windowBinding{graphID: spec.Desc.GraphID}
	resp.Success = false
}

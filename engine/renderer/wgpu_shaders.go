package renderer

// batchShaderSource is the built-in WGSL shader used for every batched
// draw. The vertex stage reads the per-instance model matrix from a
// read-only storage buffer indexed by instance_index; the fragment stage
// modulates the bound diffuse texture with the material base color. A
// cutoff flag in params.w enables alpha-masked discard without a separate
// shader variant.
const batchShaderSource = `
struct BatchUniforms {
    view_proj: mat4x4<f32>,
    base_color: vec4<f32>,
    params: vec4<f32>, // x: metallic, y: roughness, z: alpha cutoff, w: cutoff enabled
};

@group(0) @binding(0) var<uniform> uniforms: BatchUniforms;
@group(0) @binding(1) var<storage, read> models: array<mat4x4<f32>>;
@group(0) @binding(2) var diffuse_texture: texture_2d<f32>;
@group(0) @binding(3) var diffuse_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @builtin(instance_index) instance: u32) -> VertexOutput {
    var out: VertexOutput;
    out.position = uniforms.view_proj * models[instance] * vec4<f32>(position, 1.0);
    out.uv = position.xy * 0.5 + vec2<f32>(0.5, 0.5);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let texel = textureSample(diffuse_texture, diffuse_sampler, in.uv);
    let color = texel * uniforms.base_color;
    if uniforms.params.w > 0.5 && color.a < uniforms.params.z {
        discard;
    }
    return color;
}
`

// blitShaderSource draws a fullscreen triangle sampling a single source
// texture. Used by the compose stage to copy an intermediate color target
// onto the surface.
const blitShaderSource = `
@group(0) @binding(0) var src_texture: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;

struct BlitOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> BlitOutput {
    var out: BlitOutput;
    let x = f32(i32(index) / 2) * 4.0 - 1.0;
    let y = f32(i32(index) & 1) * 4.0 - 1.0;
    out.position = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = vec2<f32>(x * 0.5 + 0.5, 0.5 - y * 0.5);
    return out;
}

@fragment
fn fs_main(in: BlitOutput) -> @location(0) vec4<f32> {
    return textureSample(src_texture, src_sampler, in.uv);
}
`

// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postvs_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/assert"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu"
	"github.com/google/postvs/gapis/gpu/softgpu"
	"github.com/google/postvs/gapis/postvs"
)

var position = gpu.SignatureParam{SemanticName: "SV_Position", ComponentCount: 4, Position: true}

// quad holds four clip-space positions. The first two reveal a projection
// with near 0.5 and far 1.
var quad = []float32{
	0, 0, 1, 1,
	1, 0, 3, 2,
	0, 1, 1, 1,
	1, 1, 1, 1,
}

func readFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// smallSettings starts the pool small enough for resizes to happen.
func smallSettings() config.Settings {
	s := config.Default()
	s.InitialCapacity = 64
	return s
}

type scene struct {
	ctx context.Context
	dev *softgpu.Device
	vs  *gpu.Shader
	sig gpu.RootSignature
	vb  gpu.Buffer
}

func newScene(ctx context.Context, dev *softgpu.Device, positions ...float32) *scene {
	s := &scene{ctx: ctx, dev: dev}
	s.vs = gpu.NewShader([]gpu.SignatureParam{position}, gpu.TopologyUndefined)
	dev.RegisterVertexProgram(s.vs, softgpu.PassThrough(1))
	s.sig = dev.NewRootSignature("app", false)
	var err error
	s.vb, err = dev.CreateBufferWithData(ctx, "vb", gputypes.BufferUsageVertex, floats(positions...))
	assert.For(ctx, "vb").ThatError(err).Succeeded()
	return s
}

func (s *scene) geometryShader(topology gpu.Topology, fn softgpu.PrimitiveFunc) *gpu.Shader {
	gs := gpu.NewShader([]gpu.SignatureParam{position}, topology)
	s.dev.RegisterPrimitiveProgram(gs, fn)
	return gs
}

func (s *scene) state(gs *gpu.Shader) *gpu.RenderState {
	return &gpu.RenderState{
		Pipeline: &gpu.PipelineState{
			VS:            s.vs,
			GS:            gs,
			Topology:      gpu.TriangleList,
			RootSignature: s.sig,
		},
		Topology: gpu.TriangleList,
		VertexBuffers: []gpu.VertexBinding{{
			Buffer:   s.vb,
			Stride:   16,
			Format:   gputypes.VertexFormatFloat32x4,
			StepMode: gputypes.VertexStepModeVertex,
		}},
	}
}

func (s *scene) session(settings config.Settings, events ...softgpu.Event) (*postvs.Session, *softgpu.Replay) {
	replay := softgpu.NewReplay(s.dev, events...)
	pool, err := postvs.NewPool(s.dev, settings)
	assert.For(s.ctx, "pool").Critical().ThatError(err).Succeeded()
	return postvs.NewSession(replay, pool), replay
}

func (s *scene) read(ctx context.Context, buf gpu.Buffer) []float32 {
	data, err := s.dev.Map(ctx, buf, 0, buf.Size())
	assert.For(ctx, "map").ThatError(err).Succeeded()
	defer s.dev.Unmap(buf)
	return readFloats(data)
}

func event(id uint32, state *gpu.RenderState, d gpu.DrawRequest) softgpu.Event {
	return softgpu.Event{ID: id, Draw: &d, State: state}
}

func TestCaptureVertexStage(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	session, _ := s.session(smallSettings(), event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	out := r.VS.Output()
	assert.For(ctx, "vs").That(out).IsNotNil()
	assert.For(ctx, "stride").That(out.Stride).Equals(uint32(16))
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(3))
	assert.For(ctx, "indices").That(out.UseIndices).Equals(false)
	assert.For(ctx, "position").That(out.HasPosition).Equals(true)
	assert.For(ctx, "topology").That(out.Topology).Equals(gpu.TriangleList)
	assert.For(ctx, "instance stride").That(out.InstanceStride).Equals(uint64(0))
	assert.For(ctx, "near").That(out.Near).Equals(float32(0.5))
	assert.For(ctx, "far").That(out.Far).Equals(float32(1))
	assert.For(ctx, "data").ThatSlice(s.read(ctx, out.Buffer)).Equals(quad[:12])

	assert.For(ctx, "gs").That(r.GS.Output()).IsNil()
	assert.For(ctx, "gs kind").That(r.GS.Err().Kind).Equals(postvs.ConfigurationError)
	assert.For(ctx, "gs status").ThatString(r.GS.Status()).Equals("No geometry and no tessellation shader bound.")

	view := session.CapturedMesh(ctx, 1, 0, postvs.VertexStage)
	assert.For(ctx, "view buffer").That(view.VertexBuffer).Equals(out.Buffer)
	assert.For(ctx, "view count").That(view.NumIndices).Equals(uint32(3))
	assert.For(ctx, "view index stride").That(view.IndexByteStride).Equals(uint32(0))
	assert.For(ctx, "view format").That(view.Format).Equals(gputypes.VertexFormatFloat32x4)
	assert.For(ctx, "view unproject").That(view.Unproject).Equals(true)
	assert.For(ctx, "view status").ThatString(view.Status).IsEmpty()

	gsView := session.CapturedMesh(ctx, 1, 0, postvs.GeometryStage)
	assert.For(ctx, "gs view buffer").That(gsView.VertexBuffer).IsNil()
	assert.For(ctx, "gs view status").ThatString(gsView.Status).HasPrefix("No geometry")

	assert.For(ctx, "cached").That(session.CaptureOutputs(ctx, 1)).Equals(r)
	missing := session.CapturedMesh(ctx, 7, 0, postvs.VertexStage)
	assert.For(ctx, "missing").That(missing.VertexBuffer).IsNil()
	assert.For(ctx, "missing status").ThatString(missing.Status).IsEmpty()
}

func TestCaptureIndexedVertexStage(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	session, _ := s.session(smallSettings(), event(1, s.state(nil), gpu.DrawRequest{
		NumIndices:   6,
		NumInstances: 1,
		Flags:        gpu.Indexed,
		IndexWidth:   2,
		IndexData:    u16(3, 1, 2, 2, 1, 3),
	}))

	r := session.CaptureOutputs(ctx, 1)
	out := r.VS.Output()
	assert.For(ctx, "vs").That(out).IsNotNil()
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(6))
	assert.For(ctx, "indices").That(out.UseIndices).Equals(true)
	assert.For(ctx, "width").That(out.IndexWidth).Equals(uint32(2))
	assert.For(ctx, "data").ThatSlice(s.read(ctx, out.Buffer)).Equals(quad[4:])

	ib, err := s.dev.Map(ctx, out.IndexBuffer, 0, out.IndexBuffer.Size())
	assert.For(ctx, "map indices").ThatError(err).Succeeded()
	assert.For(ctx, "rewritten").ThatSlice(append([]byte{}, ib...)).Equals(u16(2, 0, 1, 1, 0, 2))
	s.dev.Unmap(out.IndexBuffer)

	view := session.CapturedMesh(ctx, 1, 0, postvs.VertexStage)
	assert.For(ctx, "view index buffer").That(view.IndexBuffer).Equals(out.IndexBuffer)
	assert.For(ctx, "view index stride").That(view.IndexByteStride).Equals(uint32(2))
	assert.For(ctx, "view count").That(view.NumIndices).Equals(uint32(6))
}

func TestCaptureInstancedVertexStage(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	vs := gpu.NewShader([]gpu.SignatureParam{position}, gpu.TopologyUndefined)
	s.dev.RegisterVertexProgram(vs, func(in softgpu.VertexInput) softgpu.Vertex {
		p := append([]float32{}, in.Attributes[0]...)
		p[0] += float32(in.InstanceID)
		return softgpu.Vertex{p}
	})
	state := s.state(nil)
	state.Pipeline.VS = vs
	session, _ := s.session(smallSettings(), event(1, state, gpu.DrawRequest{NumIndices: 3, NumInstances: 2, Flags: gpu.Instanced}))

	out := session.CaptureOutputs(ctx, 1).VS.Output()
	assert.For(ctx, "vs").That(out).IsNotNil()
	assert.For(ctx, "instance stride").That(out.InstanceStride).Equals(uint64(48))
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(3))

	view := session.CapturedMesh(ctx, 1, 1, postvs.VertexStage)
	assert.For(ctx, "offset").That(view.VertexByteOffset).Equals(uint64(48))
	data := s.read(ctx, out.Buffer)
	assert.For(ctx, "second instance").ThatSlice(data[12:]).Equals([]float32{
		1, 0, 1, 1,
		2, 0, 3, 2,
		1, 1, 1, 1,
	})
}

func TestCaptureGeometryStage(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleStrip, softgpu.Amplify(2))
	session, _ := s.session(config.Default(), event(1, s.state(gs), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "vs").That(r.VS.Output()).IsNotNil()
	out := r.GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(6))
	assert.For(ctx, "topology").That(out.Topology).Equals(gpu.TriangleList)
	assert.For(ctx, "instances").ThatSlice(out.Instances).IsEmpty()
	assert.For(ctx, "data").ThatSlice(s.read(ctx, out.Buffer)).Equals(append(quad[:12:12], quad[:12]...))
	assert.For(ctx, "trace").ThatSlice(session.DiscoveryTrace()).Equals([]postvs.DiscoveryState{
		postvs.Idle, postvs.Probing, postvs.Resizing, postvs.Executing, postvs.Done,
	})

	view := session.CapturedMesh(ctx, 1, 0, postvs.GeometryStage)
	assert.For(ctx, "view count").That(view.NumIndices).Equals(uint32(6))
	assert.For(ctx, "view topology").That(view.Topology).Equals(gpu.TriangleList)
}

func TestCaptureGeometryStageResizes(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(8))
	session, _ := s.session(smallSettings(), event(1, s.state(gs), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	out := r.GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(24))
	assert.For(ctx, "capacity").That(session.Pool().Capacity()).Equals(uint64(512))
	assert.For(ctx, "recreations").ThatInteger(session.Pool().Recreations()).Equals(2)
	assert.For(ctx, "trace").ThatSlice(session.DiscoveryTrace()).Equals([]postvs.DiscoveryState{
		postvs.Idle, postvs.Probing, postvs.Resizing, postvs.Probing, postvs.Resizing, postvs.Executing, postvs.Done,
	})
}

func TestCaptureGeometryStageResizeLimit(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(8))
	settings := smallSettings()
	settings.MaxResizeIterations = 0
	session, _ := s.session(settings, event(1, s.state(gs), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "vs").That(r.VS.Output()).IsNotNil()
	assert.For(ctx, "gs kind").That(r.GS.Err().Kind).Equals(postvs.ResourceExhausted)
	assert.For(ctx, "gs status").ThatString(r.GS.Status()).Equals("Geometry/tessellation output did not fit after 0 resizes")
	assert.For(ctx, "trace").ThatSlice(session.DiscoveryTrace()).Equals([]postvs.DiscoveryState{
		postvs.Idle, postvs.Probing, postvs.Resizing,
	})
}

func TestCaptureTessellationReservesTriangles(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	ds := s.geometryShader(gpu.TopologyUndefined, softgpu.Amplify(1))
	state := s.state(nil)
	state.Pipeline.DS = ds
	state.Pipeline.Topology = gpu.PointList
	state.Topology = gpu.PointList
	session, _ := s.session(smallSettings(), event(1, state, gpu.DrawRequest{NumIndices: 4, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	out := r.GS.Output()
	if !assert.For(ctx, "ds").That(out).IsNotNil() {
		return
	}
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(4))
	assert.For(ctx, "topology").That(out.Topology).Equals(gpu.PointList)
	// Four primitives are sized as triangles: 64 + 4*3*16 bytes.
	assert.For(ctx, "capacity").That(session.Pool().Capacity()).Equals(uint64(256))
	assert.For(ctx, "trace").ThatSlice(session.DiscoveryTrace()).Equals([]postvs.DiscoveryState{
		postvs.Idle, postvs.Probing, postvs.Resizing, postvs.Probing, postvs.Resizing, postvs.Executing, postvs.Done,
	})
}

func TestCaptureGeometryStageInstances(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleStrip, softgpu.Amplify(2))
	session, _ := s.session(config.Default(), event(1, s.state(gs), gpu.DrawRequest{
		NumIndices: 3, NumInstances: 3, Flags: gpu.Instanced,
	}))

	out := session.CaptureOutputs(ctx, 1).GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "verts").That(out.NumVerts).Equals(uint32(6))
	assert.For(ctx, "instance stride").That(out.InstanceStride).Equals(uint64(96))
	assert.For(ctx, "instances").ThatSlice(out.Instances).Equals([]postvs.InstanceData{
		{NumVerts: 6, ByteOffset: 0},
		{NumVerts: 6, ByteOffset: 96},
		{NumVerts: 6, ByteOffset: 192},
	})
	view := session.CapturedMesh(ctx, 1, 2, postvs.GeometryStage)
	assert.For(ctx, "view offset").That(view.VertexByteOffset).Equals(uint64(192))
	assert.For(ctx, "view count").That(view.NumIndices).Equals(uint32(6))
}

func TestCaptureGeometryStageVariableInstances(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	// Each instance emits its triangle InstanceID times.
	gs := s.geometryShader(gpu.TriangleList, func(in softgpu.PrimitiveInput) []softgpu.Vertex {
		return softgpu.Amplify(int(in.InstanceID))(in)
	})
	session, _ := s.session(config.Default(), event(1, s.state(gs), gpu.DrawRequest{
		NumIndices: 3, NumInstances: 3, Flags: gpu.Instanced,
	}))

	out := session.CaptureOutputs(ctx, 1).GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "instances").ThatSlice(out.Instances).Equals([]postvs.InstanceData{
		{NumVerts: 0, ByteOffset: 0},
		{NumVerts: 3, ByteOffset: 0},
		{NumVerts: 6, ByteOffset: 48},
	})
	assert.For(ctx, "data").ThatInteger(len(s.read(ctx, out.Buffer))).Equals(9 * 4)
	view := session.CapturedMesh(ctx, 1, 2, postvs.GeometryStage)
	assert.For(ctx, "view offset").That(view.VertexByteOffset).Equals(uint64(48))
	assert.For(ctx, "view count").That(view.NumIndices).Equals(uint32(6))
}

func TestCaptureInstancesSyncInterval(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(1))
	settings := config.Default()
	settings.InstanceSyncInterval = 2
	session, _ := s.session(settings, event(1, s.state(gs), gpu.DrawRequest{
		NumIndices: 3, NumInstances: 5, Flags: gpu.Instanced,
	}))

	out := session.CaptureOutputs(ctx, 1).GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "instances").ThatSlice(out.Instances).IsLength(5)
	assert.For(ctx, "last offset").That(out.Instances[4].ByteOffset).Equals(uint64(4 * 48))
	assert.For(ctx, "in flight").ThatInteger(s.dev.Stats().MaxInFlightDraws).IsAtMost(2)
}

func TestCaptureEmptyVertexSignature(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	vs := gpu.NewShader(nil, gpu.TopologyUndefined)
	s.dev.RegisterVertexProgram(vs, softgpu.PassThrough(0))
	gs := s.geometryShader(gpu.PointList, func(in softgpu.PrimitiveInput) []softgpu.Vertex {
		return []softgpu.Vertex{{{float32(in.PrimitiveID), 0, 0, 1}}}
	})
	state := s.state(gs)
	state.Pipeline.VS = vs
	session, _ := s.session(smallSettings(), event(1, state, gpu.DrawRequest{NumIndices: 6, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "vs empty").That(r.VS.Empty()).Equals(true)
	out := r.GS.Output()
	assert.For(ctx, "gs").That(out).IsNotNil()
	assert.For(ctx, "topology").That(out.Topology).Equals(gpu.PointList)
	assert.For(ctx, "data").ThatSlice(s.read(ctx, out.Buffer)).Equals([]float32{0, 0, 0, 1, 1, 0, 0, 1})
}

func TestCaptureNoVertexData(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	// Outputs only to a non-rasterized stream, so nothing is streamed out
	// for the vertex stage.
	vs := gpu.NewShader([]gpu.SignatureParam{{SemanticName: "COLOR", ComponentCount: 4, Stream: 1}}, gpu.TopologyUndefined)
	s.dev.RegisterVertexProgram(vs, softgpu.PassThrough(1))
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(1))
	state := s.state(gs)
	state.Pipeline.VS = vs
	session, _ := s.session(smallSettings(), event(1, state, gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "vs kind").That(r.VS.Err().Kind).Equals(postvs.EmptyResult)
	assert.For(ctx, "vs status").ThatString(r.VS.Status()).Equals("Vertex output data from GPU contained no vertex data")
	assert.For(ctx, "gs empty").That(r.GS.Empty()).Equals(true)
}

func TestCaptureNoGeometryData(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(0))
	session, _ := s.session(smallSettings(), event(1, s.state(gs), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "vs").That(r.VS.Output()).IsNotNil()
	assert.For(ctx, "gs kind").That(r.GS.Err().Kind).Equals(postvs.EmptyResult)
	assert.For(ctx, "gs status").ThatString(r.GS.Status()).Equals("No detectable output generated by geometry/tessellation shaders")
}

func TestCaptureConfigurationErrors(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	compute := s.state(nil)
	compute.Pipeline.Compute = true
	noVS := s.state(nil)
	noVS.Pipeline.VS = nil
	events := []softgpu.Event{
		event(1, &gpu.RenderState{}, gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(2, compute, gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(3, noVS, gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(4, s.state(nil), gpu.DrawRequest{NumIndices: 0, NumInstances: 1}),
		event(5, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 0}),
	}
	session, _ := s.session(smallSettings(), events...)
	for _, test := range []struct {
		id     uint32
		status string
	}{
		{1, "No pipeline bound"},
		{2, "No graphics pipeline bound"},
		{3, "No vertex shader in pipeline"},
		{4, "Empty drawcall (0 indices/vertices)"},
		{5, "Empty drawcall (0 instances)"},
	} {
		r := session.CaptureOutputs(ctx, test.id)
		for _, stage := range []postvs.Stage{postvs.VertexStage, postvs.GeometryStage} {
			data := r.Stage(stage)
			assert.For(ctx, "%d %v output", test.id, stage).That(data.Output()).IsNil()
			assert.For(ctx, "%d %v kind", test.id, stage).That(data.Err().Kind).Equals(postvs.ConfigurationError)
			assert.For(ctx, "%d %v status", test.id, stage).ThatString(data.Status()).Equals(test.status)
		}
	}
	assert.For(ctx, "pool").That(session.Pool().Ready()).Equals(false)
}

func TestCaptureDeviceErrors(t *testing.T) {
	ctx := log.Testing(t)
	dev := softgpu.New()
	s := newScene(ctx, dev, quad...)
	gs := s.geometryShader(gpu.TriangleList, softgpu.Amplify(1))
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(2, s.state(gs), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
	)

	dev.FailNext(softgpu.OpCreateRootSignature, nil)
	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "root kind").That(r.VS.Err().Kind).Equals(postvs.DeviceError)
	assert.For(ctx, "root status").ThatString(r.VS.Status()).Equals("Couldn't enable stream-out in root signature: Injected failure")
	assert.For(ctx, "root gs").ThatString(r.GS.Status()).Equals("No geometry and no tessellation shader bound.")

	dev.FailNext(softgpu.OpCreatePipeline, nil)
	r = session.CaptureOutputs(ctx, 2)
	assert.For(ctx, "pipeline status").ThatString(r.VS.Status()).Equals("Couldn't create patched graphics pipeline: Injected failure")
	assert.For(ctx, "pipeline gs").ThatString(r.GS.Status()).Equals(
		"No geometry/tessellation output fetched due to error processing vertex stage.")
	assert.For(ctx, "lost").That(dev.Lost()).Equals(false)
}

func TestCaptureReplayError(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(2, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
	)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	r := session.CaptureOutputs(cancelled, 2)
	assert.For(ctx, "kind").That(r.VS.Err().Kind).Equals(postvs.DeviceError)
	assert.For(ctx, "status").ThatString(r.VS.Status()).Equals("Couldn't replay to event 2: context canceled")
	assert.For(ctx, "gs status").ThatString(r.GS.Status()).Equals(r.VS.Status())
}

func TestCaptureCapacityRefused(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	settings := smallSettings()
	settings.MaxCapacity = 512
	session, _ := s.session(settings,
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 100, NumInstances: 1}),
		event(2, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
	)

	r := session.CaptureOutputs(ctx, 1)
	err := r.VS.Err()
	assert.For(ctx, "kind").That(err.Kind).Equals(postvs.ResourceExhausted)
	assert.For(ctx, "status").ThatString(err.Status).Equals("Vertex output generated 2048 bytes of data which ran out of memory")
	assert.For(ctx, "cause").ThatError(err.Cause).HasCause(postvs.ErrCapacityRefused)
	assert.For(ctx, "pool").That(session.Pool().Ready()).Equals(false)

	out := session.CaptureOutputs(ctx, 2).VS.Output()
	assert.For(ctx, "retry").That(out).IsNotNil()
	assert.For(ctx, "capacity").That(session.Pool().Capacity()).Equals(uint64(128))
}

func TestCaptureOversizedDrawIsRefused(t *testing.T) {
	ctx := log.Testing(t)
	dev := softgpu.New()
	s := newScene(ctx, dev, quad...)
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 1 << 30, NumInstances: 1 << 30}),
	)

	r := session.CaptureOutputs(ctx, 1)
	err := r.VS.Err()
	if !assert.For(ctx, "vs failed").That(err).IsNotNil() {
		return
	}
	assert.For(ctx, "kind").That(err.Kind).Equals(postvs.ResourceExhausted)
	assert.For(ctx, "status").ThatString(err.Status).Equals(
		"Vertex output generated 18446744073709551615 bytes of data which ran out of memory")
	assert.For(ctx, "cause").ThatError(err.Cause).HasCause(postvs.ErrCapacityRefused)
	assert.For(ctx, "pool").That(session.Pool().Ready()).Equals(false)
	assert.For(ctx, "submits").ThatInteger(dev.Stats().Submits).Equals(0)
}

func TestNewPoolRejectsInvalidSettings(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name   string
		modify func(*config.Settings)
	}{
		{"no sync interval", func(s *config.Settings) { s.InstanceSyncInterval = 0 }},
		{"no counter", func(s *config.Settings) { s.CounterBytes = 0 }},
		{"no capacity", func(s *config.Settings) { s.InitialCapacity = 0 }},
	} {
		settings := config.Default()
		test.modify(&settings)
		pool, err := postvs.NewPool(softgpu.New(), settings)
		assert.For(ctx, "%s", test.name).ThatError(err).HasCause(config.ErrInvalidSettings)
		assert.For(ctx, "%s pool", test.name).That(pool).IsNil()
	}
}

func TestCaptureOutOfMemory(t *testing.T) {
	ctx := log.Testing(t)
	dev := softgpu.New(softgpu.WithMemoryLimit(1024))
	s := newScene(ctx, dev, quad...)
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 100, NumInstances: 1}),
		event(2, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
	)

	r := session.CaptureOutputs(ctx, 1)
	assert.For(ctx, "kind").That(r.VS.Err().Kind).Equals(postvs.ResourceExhausted)
	assert.For(ctx, "cause").ThatError(r.VS.Err().Cause).HasCause(softgpu.ErrOutOfMemory)
	assert.For(ctx, "lost").That(dev.Lost()).Equals(false)
	assert.For(ctx, "ooms").ThatInteger(dev.Stats().OOMs).Equals(1)

	assert.For(ctx, "retry").That(session.CaptureOutputs(ctx, 2).VS.Output()).IsNotNil()
}

func TestResultsSurvivePoolGrowth(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(2, s.state(nil), gpu.DrawRequest{NumIndices: 100, NumInstances: 1}),
	)

	first := session.CaptureOutputs(ctx, 1).VS.Output()
	assert.For(ctx, "first").That(first).IsNotNil()
	second := session.CaptureOutputs(ctx, 2).VS.Output()
	assert.For(ctx, "second").That(second).IsNotNil()
	assert.For(ctx, "recreations").ThatInteger(session.Pool().Recreations()).Equals(2)
	assert.For(ctx, "first data").ThatSlice(s.read(ctx, first.Buffer)).Equals(quad[:12])
}

func TestAliasAndClearCache(t *testing.T) {
	ctx := log.Testing(t)
	dev := softgpu.New()
	s := newScene(ctx, dev, quad...)
	session, replay := s.session(smallSettings(), event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}))

	r := session.CaptureOutputs(ctx, 1)
	session.AliasEvent(1, 9)
	executed := replay.Executed
	assert.For(ctx, "alias").That(session.CaptureOutputs(ctx, 9)).Equals(r)
	assert.For(ctx, "no replay").ThatInteger(replay.Executed).Equals(executed)
	assert.For(ctx, "alias view").That(session.CapturedMesh(ctx, 9, 0, postvs.VertexStage).VertexBuffer).Equals(r.VS.Output().Buffer)

	session.ClearCache(ctx)
	assert.For(ctx, "cleared").ThatInteger(session.Cache().Len()).Equals(0)
	assert.For(ctx, "pool").That(session.Pool().Ready()).Equals(false)
	assert.For(ctx, "live").ThatInteger(dev.LiveBuffers()).Equals(1)
	assert.For(ctx, "alias kept").That(session.Cache().Resolve(9)).Equals(uint32(1))
}

func TestConcurrentCaptures(t *testing.T) {
	ctx := log.Testing(t)
	s := newScene(ctx, softgpu.New(), quad...)
	session, _ := s.session(smallSettings(),
		event(1, s.state(nil), gpu.DrawRequest{NumIndices: 3, NumInstances: 1}),
		event(2, s.state(nil), gpu.DrawRequest{NumIndices: 4, NumInstances: 1}),
	)
	results := make(chan *postvs.CaptureResult, 2)
	for _, id := range []uint32{1, 2} {
		go func(id uint32) { results <- session.CaptureOutputs(ctx, id) }(id)
	}
	for i := 0; i < 2; i++ {
		r := <-results
		out := r.VS.Output()
		assert.For(ctx, "%d vs", r.EventID).That(out).IsNotNil()
		assert.For(ctx, "%d data", r.EventID).ThatSlice(s.read(ctx, out.Buffer)).Equals(quad[:out.NumVerts*4])
	}
}

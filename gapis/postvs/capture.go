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

// Package postvs captures the post-transform vertex output of draw calls
// through stream-out: the vertices leaving the vertex shader, and those
// leaving the geometry or tessellation stages.
package postvs

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu"
)

// Session captures and caches the post-transform output of the draws of one
// replay. Calls are serialized; captures never overlap on the pool.
type Session struct {
	mu       sync.Mutex
	replay   gpu.Replay
	device   gpu.Device
	pool     *Pool
	cache    *Cache
	settings config.Settings
	trace    []DiscoveryState
}

// NewSession returns a session capturing events of replay through pool.
func NewSession(replay gpu.Replay, pool *Pool) *Session {
	return &Session{
		replay:   replay,
		device:   replay.Device(),
		pool:     pool,
		cache:    NewCache(),
		settings: pool.Settings(),
	}
}

// Pool returns the session's scratch pool.
func (s *Session) Pool() *Pool { return s.pool }

// Cache returns the session's result cache.
func (s *Session) Cache() *Cache { return s.cache }

// DiscoveryTrace returns the states visited by the last geometry stage
// capture.
func (s *Session) DiscoveryTrace() []DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DiscoveryState{}, s.trace...)
}

// CaptureOutputs captures the outputs of eventID, replaying to it first,
// unless it or its alias primary is already cached.
func (s *Session) CaptureOutputs(ctx context.Context, eventID uint32) *CaptureResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureOutputs(ctx, eventID, true)
}

func (s *Session) captureOutputs(ctx context.Context, eventID uint32, seek bool) *CaptureResult {
	eventID = s.cache.Resolve(eventID)
	if r := s.cache.Lookup(eventID); r != nil {
		return r
	}
	ctx = log.V{"event": eventID}.Bind(ctx)
	var r *CaptureResult
	if seek {
		if err := s.replay.ReplayRange(ctx, 0, eventID, gpu.ReplayWithoutDraw, nil); err != nil {
			log.W(ctx, "Replay to event failed: %v", err)
			status := newError(DeviceError, err, statusReplay, eventID, err)
			r = &CaptureResult{EventID: eventID, VS: failed(status), GS: failed(status)}
		}
	}
	if r == nil {
		r = s.capture(ctx, eventID)
	}
	s.cache.Store(eventID, r)
	return r
}

// CapturedMesh returns the view of instance of the captured stage of
// eventID. An event that was never captured has an empty view.
func (s *Session) CapturedMesh(ctx context.Context, eventID, instance uint32, stage Stage) MeshView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return meshView(s.cache.Lookup(eventID), eventID, instance, stage)
}

// AliasEvent makes alias share the result of primary.
func (s *Session) AliasEvent(primary, alias uint32) {
	s.cache.Alias(primary, alias)
}

// ClearCache releases every captured result and the scratch pool.
func (s *Session) ClearCache(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear(ctx, s.device)
	s.pool.Release(ctx)
}

// capture runs both capture passes of the current draw. Out of memory
// conditions are tolerated for the whole capture.
func (s *Session) capture(ctx context.Context, eventID uint32) *CaptureResult {
	defer s.device.TolerateOOM()()

	state := s.replay.State()
	r := &CaptureResult{EventID: eventID, Topology: state.Topology}
	both := func(status string) *CaptureResult {
		err := newError(ConfigurationError, nil, "%s", status)
		r.VS, r.GS = failed(err), failed(err)
		return r
	}
	p := state.Pipeline
	switch {
	case p == nil:
		return both(statusNoPipeline)
	case p.Compute:
		return both(statusNoGraphicsPipeline)
	case p.VS == nil:
		return both(statusNoVertexShader)
	}
	d := s.replay.Action(eventID)
	switch {
	case d == nil || d.NumIndices == 0:
		return both(statusNoIndices)
	case d.NumInstances == 0:
		return both(statusNoInstances)
	}

	last := p.LastGeometryStage()
	if last != nil {
		r.GS = failed(newError(DeviceError, nil, statusVertexStageFailed))
	} else {
		r.GS = failed(newError(ConfigurationError, nil, statusNoGeometryStage))
	}

	sig, created, err := s.streamOutSignature(ctx, p)
	if err != nil {
		log.W(ctx, "Couldn't create stream-out root signature: %v", err)
		r.VS = failed(newError(DeviceError, err, statusRootSignature, err))
		return r
	}
	if created {
		defer s.device.Release(sig)
	}

	vs := s.captureVertexStage(ctx, d, state, sig)
	r.VS = vs
	if err := vs.Err(); err != nil {
		log.W(ctx, "Vertex stage capture failed: %v", err)
		if err.Kind == EmptyResult {
			r.GS = StageData{}
		}
		return r
	}
	if last != nil {
		r.GS = s.captureGeometryStage(ctx, d, state, sig, last)
		if err := r.GS.Err(); err != nil {
			log.W(ctx, "Geometry stage capture failed: %v", err)
		}
	}
	return r
}

// captureVertexStage streams out the vertex shader outputs of d with every
// later stage disabled. Indexed draws capture each unique vertex once.
func (s *Session) captureVertexStage(ctx context.Context, d *gpu.DrawRequest, state *gpu.RenderState, sig gpu.RootSignature) StageData {
	p := state.Pipeline
	if len(p.VS.Outputs) == 0 {
		return StageData{}
	}
	decl := BuildDeclaration(ctx, p.VS.Outputs, 0)
	pipe, err := s.device.CreatePipeline(ctx, gpu.PipelineDesc{
		Label:         bufferLabel("vertex pipeline", d.EventID),
		VS:            p.VS,
		Topology:      gpu.PointList,
		RootSignature: sig,
		StreamOut: gpu.StreamOutDesc{
			Entries:          decl.Entries,
			Stride:           decl.Stride,
			RasterizedStream: gpu.NoRasterizedStream,
		},
	})
	if err != nil {
		return failed(newError(DeviceError, err, statusPipeline, err))
	}
	defer s.device.Release(pipe)

	indexed := d.Is(gpu.Indexed)
	required := outputBytes(s.settings.CounterBytes, uint64(d.NumIndices), uint64(d.NumInstances), uint64(decl.Stride))
	var remap *IndexRemap
	var rewritten []byte
	if indexed {
		remap, rewritten, err = CompactIndices(d.IndexData, d.IndexWidth, d.NumIndices, p.StripCut)
		if err != nil {
			return failed(newError(ConfigurationError, err, statusIndexData, err))
		}
		if config.DumpIndexRemap {
			log.D(ctx, "Unique indices: %v", remap.Indices)
		}
		if size := remap.OutputSize(); size > required {
			required = size
		}
	}
	size := s.pool.Target(required)
	if err := s.pool.EnsureCapacity(ctx, required); err != nil {
		return failed(newError(ResourceExhausted, err, statusVertexOOM, size))
	}

	list, err := s.device.NewCommandList(ctx)
	if err != nil {
		return failed(newError(DeviceError, err, statusSubmit, err))
	}
	bind(list, state, pipe, sig)
	list.SetStreamOutTarget(s.pool.streamOutTarget(0, s.settings.CounterBytes))
	list.SetTopology(gpu.PointList)
	if indexed {
		if err := s.device.Write(ctx, s.pool.Indices(), 0, remap.Bytes()); err != nil {
			return failed(newError(DeviceError, err, statusSubmit, err))
		}
		list.SetIndexBuffer(s.pool.Indices(), gputypes.IndexFormatUint32, 0)
		list.DrawIndexed(uint32(remap.Len()), d.NumInstances, 0, d.BaseVertex, d.InstanceOffset)
	} else {
		list.Draw(d.NumIndices, d.NumInstances, d.VertexOffset, d.InstanceOffset)
	}
	s.pool.Resolve(list)
	if err := s.submit(ctx, list); err != nil {
		return failed(newError(DeviceError, err, statusSubmit, err))
	}

	readback := s.pool.Readback()
	data, err := s.device.Map(ctx, readback, 0, readback.Size())
	if err != nil {
		return failed(newError(DeviceError, err, statusVertexReadback))
	}
	defer s.device.Unmap(readback)

	vertices := s.written(data, s.settings.CounterBytes, binary.LittleEndian.Uint64(data))
	if len(vertices) == 0 {
		return failed(newError(EmptyResult, nil, statusNoVertexData))
	}
	buf, err := s.upload(ctx, bufferLabel("vsout buffer", d.EventID), gputypes.BufferUsageVertex, vertices)
	if err != nil {
		return failed(newError(ResourceExhausted, err, statusVertexOOM, len(vertices)))
	}
	out := &StageOutput{
		Buffer:      buf,
		Stride:      decl.Stride,
		NumVerts:    d.NumIndices,
		Topology:    state.Topology,
		UseIndices:  indexed,
		HasPosition: decl.HasPosition(),
		Near:        s.settings.DefaultNear,
		Far:         s.settings.DefaultFar,
	}
	if out.HasPosition {
		out.Near, out.Far = RecoverProjection(vertices, decl.Stride, uint64(len(vertices))/uint64(decl.Stride),
			s.settings.DefaultNear, s.settings.DefaultFar)
	}
	if d.Is(gpu.Instanced) {
		out.InstanceStride = uint64(len(vertices)) / uint64(max(1, d.NumInstances))
	}
	if indexed && len(rewritten) > 0 {
		ib, err := s.upload(ctx, bufferLabel("idxBuf", d.EventID), gputypes.BufferUsageIndex, rewritten)
		if err != nil {
			s.device.Release(buf)
			return failed(newError(ResourceExhausted, err, statusVertexOOM, len(rewritten)))
		}
		out.IndexBuffer, out.IndexWidth = ib, d.IndexWidth
	}
	return succeeded(out)
}

// captureGeometryStage streams out the outputs of last, the final geometry
// or tessellation stage, sizing the output by discovery.
func (s *Session) captureGeometryStage(ctx context.Context, d *gpu.DrawRequest, state *gpu.RenderState, sig gpu.RootSignature, last *gpu.Shader) StageData {
	p := state.Pipeline
	decl := BuildDeclaration(ctx, last.Outputs, rasterizedStream(p))
	pipe, err := s.device.CreatePipeline(ctx, gpu.PipelineDesc{
		Label:         bufferLabel("geometry pipeline", d.EventID),
		VS:            p.VS,
		HS:            p.HS,
		DS:            p.DS,
		GS:            p.GS,
		Topology:      p.Topology,
		RootSignature: sig,
		StripCut:      p.StripCut,
		StreamOut: gpu.StreamOutDesc{
			Entries:          decl.Entries,
			Stride:           decl.Stride,
			RasterizedStream: p.RasterizedStream,
		},
	})
	if err != nil {
		return failed(newError(DeviceError, err, statusPipeline, err))
	}
	defer s.device.Release(pipe)

	topology := last.OutputTopology
	vpp := topology.AsList().VerticesPerPrimitive()
	if topology == gpu.TopologyUndefined {
		// Tessellation output without a declared topology may still emit
		// triangles, so reserve at least three vertices per primitive.
		topology = state.Topology
		vpp = max(topology.AsList().VerticesPerPrimitive(), 3)
	}
	c := newDiscovery(s, d, state, pipe, sig, decl.Stride, vpp)
	cerr := c.run(ctx)
	s.trace = c.trace
	if cerr != nil {
		return failed(cerr)
	}

	readback := s.pool.Readback()
	data, err := s.device.Map(ctx, readback, 0, readback.Size())
	if err != nil {
		return failed(newError(DeviceError, err, statusGeometryReadback))
	}
	defer s.device.Unmap(readback)

	var instances []InstanceData
	var total uint64
	if c.multiInstance() {
		counters := make([]uint64, d.NumInstances)
		for i := range counters {
			counters[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		instances, total = SplitInstances(counters, decl.Stride)
	} else {
		total = binary.LittleEndian.Uint64(data)
	}
	vertices := s.written(data, c.counterBytes, total)
	if len(vertices) == 0 {
		return failed(newError(EmptyResult, nil, statusNoGeometryData))
	}
	buf, err := s.upload(ctx, bufferLabel("gsout buffer", d.EventID), gputypes.BufferUsageVertex, vertices)
	if err != nil {
		return failed(newError(ResourceExhausted, err, statusGeometryOOM, len(vertices)))
	}
	out := &StageOutput{
		Buffer:      buf,
		Stride:      decl.Stride,
		NumVerts:    uint32(uint64(len(vertices)) / uint64(decl.Stride)),
		Instances:   instances,
		Topology:    topology.AsList(),
		HasPosition: decl.HasPosition(),
		Near:        s.settings.DefaultNear,
		Far:         s.settings.DefaultFar,
	}
	if out.HasPosition {
		out.Near, out.Far = RecoverProjection(vertices, decl.Stride, uint64(out.NumVerts),
			s.settings.DefaultNear, s.settings.DefaultFar)
	}
	if d.Is(gpu.Instanced) {
		n := uint64(max(1, d.NumInstances))
		out.InstanceStride = uint64(len(vertices)) / n
		out.NumVerts = uint32(uint64(out.NumVerts) / n)
	}
	return succeeded(out)
}

// written returns the bytes of data the counter says were written after
// the counter area, clamped to what the buffer holds.
func (s *Session) written(data []byte, offset, count uint64) []byte {
	if offset >= uint64(len(data)) {
		return nil
	}
	data = data[offset:]
	if count < uint64(len(data)) {
		data = data[:count]
	}
	return data
}

func (s *Session) String() string {
	return fmt.Sprintf("postvs session (%d cached, capacity %d)", s.cache.Len(), s.pool.Capacity())
}

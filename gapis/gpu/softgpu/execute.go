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

package softgpu

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/gapis/gpu"
)

// executor holds the state of one command list while it executes.
type executor struct {
	device        *Device
	pipeline      *pipeline
	rootSignature gpu.RootSignature
	topology      gpu.Topology
	vertexBuffers []gpu.VertexBinding
	index         gpu.IndexBinding
	so            gpu.StreamOutTarget
	active        []*gpu.StreamOutStatistics
	draws         int
	barriers      int
}

type drawCall struct {
	count, instances, first uint32
	baseVertex              int32
	firstInstance           uint32
	indexed                 bool
}

// vertexRef is one element of the assembled vertex stream. cut marks a
// primitive restart.
type vertexRef struct {
	id  uint32
	cut bool
}

func (e *executor) beginQuery(q *querySet, slot int) {
	q.results[slot] = gpu.StreamOutStatistics{}
	e.active = append(e.active, &q.results[slot])
}

func (e *executor) endQuery(q *querySet, slot int) {
	for i, a := range e.active {
		if a == &q.results[slot] {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

func (e *executor) resolveQuery(q *querySet, slot int, dst *buffer, offset uint64) {
	data := dst.bytes()
	if offset+gpu.StreamOutStatisticsSize > uint64(len(data)) {
		return
	}
	r := q.results[slot]
	binary.LittleEndian.PutUint64(data[offset:], r.PrimitivesWritten)
	binary.LittleEndian.PutUint64(data[offset+8:], r.PrimitivesStorageNeeded)
}

func (e *executor) draw(d drawCall) {
	e.draws++
	p := e.pipeline
	if p == nil || d.instances == 0 {
		return
	}
	refs := e.vertexStream(d)
	outputs := p.outputs()
	for inst := d.firstInstance; inst < d.firstInstance+d.instances; inst++ {
		cache := map[uint32]Vertex{}
		verts := make([]Vertex, len(refs))
		for i, r := range refs {
			if r.cut {
				continue
			}
			v, ok := cache[r.id]
			if !ok {
				v = p.vs(VertexInput{VertexID: r.id, InstanceID: inst, Attributes: e.fetch(r.id, inst)})
				cache[r.id] = v
			}
			verts[i] = v
		}
		prims := assemble(e.topology, verts)
		for _, s := range p.stages {
			vpp := s.shader.OutputTopology.AsList().VerticesPerPrimitive()
			var next [][]Vertex
			for id, prim := range prims {
				emitted := s.fn(PrimitiveInput{Vertices: prim, PrimitiveID: uint32(id), InstanceID: inst})
				for len(emitted) >= int(vpp) {
					next = append(next, emitted[:vpp])
					emitted = emitted[vpp:]
				}
			}
			prims = next
		}
		e.streamOut(prims, outputs)
	}
}

// vertexStream returns the vertex indices a draw reads, in order.
func (e *executor) vertexStream(d drawCall) []vertexRef {
	refs := make([]vertexRef, d.count)
	if !d.indexed {
		for i := range refs {
			refs[i].id = d.first + uint32(i)
		}
		return refs
	}
	width := uint64(4)
	if e.index.Format == gputypes.IndexFormatUint16 {
		width = 2
	}
	sentinel := uint32(math.MaxUint32)
	if width == 2 {
		sentinel = math.MaxUint16
	}
	var data []byte
	if b, ok := e.index.Buffer.(*buffer); ok {
		data = b.bytes()
	}
	for i := range refs {
		pos := e.index.Offset + uint64(d.first+uint32(i))*width
		value := uint32(0)
		if pos+width <= uint64(len(data)) {
			if width == 2 {
				value = uint32(binary.LittleEndian.Uint16(data[pos:]))
			} else {
				value = binary.LittleEndian.Uint32(data[pos:])
			}
		}
		if e.pipeline.desc.StripCut && value == sentinel {
			refs[i].cut = true
			continue
		}
		refs[i].id = uint32(int64(value) + int64(d.baseVertex))
	}
	return refs
}

func componentCount(f gputypes.VertexFormat) int {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 1
	case gputypes.VertexFormatFloat32x2:
		return 2
	case gputypes.VertexFormatFloat32x3:
		return 3
	default:
		return 4
	}
}

// fetch reads the attributes of a vertex from the bound vertex buffers.
// Reads outside a buffer return zeros.
func (e *executor) fetch(vertex, instance uint32) [][]float32 {
	out := make([][]float32, len(e.vertexBuffers))
	for i, vb := range e.vertexBuffers {
		element := vertex
		if vb.StepMode == gputypes.VertexStepModeInstance {
			element = instance
		}
		values := make([]float32, componentCount(vb.Format))
		var data []byte
		if b, ok := vb.Buffer.(*buffer); ok {
			data = b.bytes()
		}
		base := vb.Offset + uint64(element)*uint64(vb.Stride)
		for c := range values {
			pos := base + uint64(c)*4
			if pos+4 <= uint64(len(data)) {
				values[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
			}
		}
		out[i] = values
	}
	return out
}

// streamOut writes prims to the bound stream-out target, updating the
// filled size counter and any active statistics queries.
func (e *executor) streamOut(prims [][]Vertex, outputs []gpu.SignatureParam) {
	desc := e.pipeline.desc.StreamOut
	if desc.Stride == 0 || len(desc.Entries) == 0 {
		return
	}
	stride := uint64(desc.Stride)
	var counter, data []byte
	if b, ok := e.so.Buffer.(*buffer); ok {
		mem := b.bytes()
		if e.so.CounterOffset+8 <= uint64(len(mem)) && e.so.DataOffset <= uint64(len(mem)) {
			counter = mem[e.so.CounterOffset : e.so.CounterOffset+8]
			data = mem[e.so.DataOffset:]
			if e.so.Size < uint64(len(data)) {
				data = data[:e.so.Size]
			}
		}
	}
	for _, prim := range prims {
		for _, q := range e.active {
			q.PrimitivesStorageNeeded++
		}
		if counter == nil {
			continue
		}
		filled := binary.LittleEndian.Uint64(counter)
		size := uint64(len(prim)) * stride
		if filled > uint64(len(data)) || size > uint64(len(data))-filled {
			continue
		}
		for _, v := range prim {
			writeVertex(data[filled:filled+stride], v, desc.Entries, outputs)
			filled += stride
		}
		binary.LittleEndian.PutUint64(counter, filled)
		for _, q := range e.active {
			q.PrimitivesWritten++
		}
	}
}

func writeVertex(dst []byte, v Vertex, entries []gpu.StreamOutEntry, outputs []gpu.SignatureParam) {
	for i := range dst {
		dst[i] = 0
	}
	off := 0
	for _, entry := range entries {
		if entry.OutputSlot != 0 {
			continue
		}
		param := -1
		for i, o := range outputs {
			if strings.EqualFold(o.SemanticName, entry.SemanticName) && o.SemanticIndex == entry.SemanticIndex {
				param = i
				break
			}
		}
		for c := uint32(0); c < entry.ComponentCount; c++ {
			if off+4 > len(dst) {
				return
			}
			value := float32(0)
			if param >= 0 && param < len(v) && int(entry.StartComponent+c) < len(v[param]) {
				value = v[param][entry.StartComponent+c]
			}
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(value))
			off += 4
		}
	}
}

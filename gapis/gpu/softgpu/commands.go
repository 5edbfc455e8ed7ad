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
	"github.com/gogpu/gputypes"
	"github.com/google/postvs/gapis/gpu"
)

type command func(e *executor)

// commandList records commands for deferred execution at Sync.
type commandList struct {
	commands []command
	closed   bool
}

var _ gpu.CommandList = (*commandList)(nil)

func (l *commandList) record(c command) {
	if l.closed {
		panic("Recording into a closed command list")
	}
	l.commands = append(l.commands, c)
}

func (l *commandList) ApplyState(state *gpu.RenderState) {
	s := *state
	l.record(func(e *executor) {
		e.topology = s.Topology
		e.vertexBuffers = s.VertexBuffers
		e.index = s.IndexBuffer
	})
}

func (l *commandList) SetPipeline(p gpu.Pipeline) {
	l.record(func(e *executor) { e.pipeline, _ = p.(*pipeline) })
}

func (l *commandList) SetRootSignature(sig gpu.RootSignature) {
	l.record(func(e *executor) { e.rootSignature = sig })
}

func (l *commandList) SetIndexBuffer(buf gpu.Buffer, format gputypes.IndexFormat, offset uint64) {
	l.record(func(e *executor) { e.index = gpu.IndexBinding{Buffer: buf, Format: format, Offset: offset} })
}

func (l *commandList) SetStreamOutTarget(t gpu.StreamOutTarget) {
	l.record(func(e *executor) { e.so = t })
}

func (l *commandList) SetTopology(t gpu.Topology) {
	l.record(func(e *executor) { e.topology = t })
}

func (l *commandList) BeginQuery(q gpu.QuerySet, slot int) {
	l.record(func(e *executor) { e.beginQuery(q.(*querySet), slot) })
}

func (l *commandList) EndQuery(q gpu.QuerySet, slot int) {
	l.record(func(e *executor) { e.endQuery(q.(*querySet), slot) })
}

func (l *commandList) ResolveQuery(q gpu.QuerySet, slot int, dst gpu.Buffer, offset uint64) {
	l.record(func(e *executor) { e.resolveQuery(q.(*querySet), slot, dst.(*buffer), offset) })
}

func (l *commandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	l.record(func(e *executor) {
		e.draw(drawCall{count: vertexCount, instances: instanceCount, first: firstVertex, firstInstance: firstInstance})
	})
}

func (l *commandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.record(func(e *executor) {
		e.draw(drawCall{
			count:         indexCount,
			instances:     instanceCount,
			first:         firstIndex,
			baseVertex:    baseVertex,
			firstInstance: firstInstance,
			indexed:       true,
		})
	})
}

func (l *commandList) Barrier(buf gpu.Buffer) {
	l.record(func(e *executor) { e.barriers++ })
}

func (l *commandList) CopyBuffer(dst gpu.Buffer, dstOffset uint64, src gpu.Buffer, srcOffset, size uint64) {
	l.record(func(e *executor) {
		d, s := dst.(*buffer).bytes(), src.(*buffer).bytes()
		if dstOffset > uint64(len(d)) || srcOffset > uint64(len(s)) {
			return
		}
		d, s = d[dstOffset:], s[srcOffset:]
		if size < uint64(len(s)) {
			s = s[:size]
		}
		copy(d, s)
	})
}

func (l *commandList) Discard(buf gpu.Buffer) {
	l.record(func(e *executor) {
		data := buf.(*buffer).bytes()
		for i := range data {
			data[i] = 0xdd
		}
	})
}

func (l *commandList) ClearBuffer(buf gpu.Buffer, offset, size uint64) {
	l.record(func(e *executor) {
		data := buf.(*buffer).bytes()
		if offset >= uint64(len(data)) {
			return
		}
		data = data[offset:]
		if size < uint64(len(data)) {
			data = data[:size]
		}
		for i := range data {
			data[i] = 0
		}
	})
}

func (l *commandList) Close() error {
	l.closed = true
	return nil
}

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

package gpu

import (
	"context"

	"github.com/gogpu/gputypes"
)

// Device creates resources and executes command lists.
type Device interface {
	CreateBuffer(ctx context.Context, desc BufferDesc) (Buffer, error)
	CreateQuerySet(ctx context.Context, label string, count int) (QuerySet, error)
	CreatePipeline(ctx context.Context, desc PipelineDesc) (Pipeline, error)
	// CreateStreamOutRootSignature returns a copy of base that allows stream
	// output.
	CreateStreamOutRootSignature(ctx context.Context, base RootSignature) (RootSignature, error)
	NewCommandList(ctx context.Context) (CommandList, error)
	// Submit queues a closed list for execution.
	Submit(ctx context.Context, list CommandList) error
	// Sync blocks until all submitted work has completed.
	Sync(ctx context.Context) error
	// Map returns a CPU view of size bytes of buf from offset. The view is
	// valid until Unmap.
	Map(ctx context.Context, buf Buffer, offset, size uint64) ([]byte, error)
	Unmap(buf Buffer)
	// Write copies data into an upload heap buffer.
	Write(ctx context.Context, buf Buffer, offset uint64, data []byte) error
	Release(r Resource)
	// TolerateOOM begins a scope in which out-of-memory failures are not
	// treated as device loss. The returned function ends the scope.
	TolerateOOM() func()
}

// StreamOutTarget is the stream-out buffer binding. The filled size counter
// is a uint64 at CounterOffset; data is written from DataOffset.
type StreamOutTarget struct {
	Buffer        Buffer
	CounterOffset uint64
	DataOffset    uint64
	Size          uint64
}

// CommandList records GPU work.
type CommandList interface {
	// ApplyState binds the vertex and index buffers, topology and pipeline
	// of a replayed draw.
	ApplyState(state *RenderState)
	SetPipeline(p Pipeline)
	SetRootSignature(sig RootSignature)
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat, offset uint64)
	// SetStreamOutTarget binds t. A zero StreamOutTarget unbinds.
	SetStreamOutTarget(t StreamOutTarget)
	SetTopology(t Topology)
	BeginQuery(q QuerySet, slot int)
	EndQuery(q QuerySet, slot int)
	// ResolveQuery writes the StreamOutStatistics of slot to dst.
	ResolveQuery(q QuerySet, slot int, dst Buffer, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	// Barrier orders GPU writes to buf before subsequent reads.
	Barrier(buf Buffer)
	CopyBuffer(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64)
	// Discard marks the contents of buf as undefined.
	Discard(buf Buffer)
	// ClearBuffer zeroes size bytes of buf from offset.
	ClearBuffer(buf Buffer, offset, size uint64)
	Close() error
}

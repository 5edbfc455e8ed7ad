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

package postvs

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// queryCount is the number of statistics slots in the pool's query set.
const queryCount = 16

// Pool owns the scratch resources stream-out is captured through: the
// stream-out buffer, its readback mirror, an index buffer for compacted
// indices and a statistics query set. The four are created, grown and
// released together. Capacity counts data bytes; the stream-out buffer and
// mirror carry an extra counter area in front of the data.
type Pool struct {
	device      gpu.Device
	settings    config.Settings
	id          uuid.UUID
	capacity    uint64
	streamOut   gpu.Buffer
	readback    gpu.Buffer
	indices     gpu.Buffer
	queries     gpu.QuerySet
	recreations int
}

// NewPool returns an empty pool on device. Nothing is allocated until
// EnsureCapacity is first called. Settings that fail validation are rejected.
func NewPool(device gpu.Device, settings config.Settings) (*Pool, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Pool{device: device, settings: settings, id: uuid.New()}, nil
}

// Device returns the device the pool allocates from.
func (p *Pool) Device() gpu.Device { return p.device }

// Settings returns the settings the pool was created with.
func (p *Pool) Settings() config.Settings { return p.settings }

// Capacity returns the number of data bytes the stream-out buffer holds.
func (p *Pool) Capacity() uint64 { return p.capacity }

// Ready returns true if the pool's resources are allocated.
func (p *Pool) Ready() bool { return p.streamOut != nil }

// Recreations returns the number of times the resources were allocated.
func (p *Pool) Recreations() int { return p.recreations }

// StreamOut returns the stream-out buffer.
func (p *Pool) StreamOut() gpu.Buffer { return p.streamOut }

// Readback returns the CPU readable mirror of the stream-out buffer.
func (p *Pool) Readback() gpu.Buffer { return p.readback }

// Indices returns the compacted index buffer.
func (p *Pool) Indices() gpu.Buffer { return p.indices }

// Queries returns the statistics query set.
func (p *Pool) Queries() gpu.QuerySet { return p.queries }

// Target returns the capacity EnsureCapacity(required) would allocate.
func (p *Pool) Target(required uint64) uint64 {
	if p.Ready() && required <= p.capacity {
		return p.capacity
	}
	return GrowFor(p.settings, p.capacity, required)
}

// EnsureCapacity grows the pool so at least required data bytes fit. All
// submitted work is synced before the old resources are released. On
// failure every resource is released and the capacity drops to zero, so a
// later smaller request starts afresh.
func (p *Pool) EnsureCapacity(ctx context.Context, required uint64) error {
	if p.Ready() && required <= p.capacity {
		return nil
	}
	size := p.Target(required)
	if p.Ready() {
		log.I(ctx, "Resizing stream-out buffer from %d to %d", p.capacity, size)
	}
	if err := p.device.Sync(ctx); err != nil {
		return errors.Wrap(err, "Syncing before stream-out resize")
	}
	return p.recreate(ctx, size)
}

func (p *Pool) recreate(ctx context.Context, capacity uint64) error {
	p.release()
	if capacity >= p.settings.MaxCapacity {
		log.W(ctx, "Stream-out buffer size %d is close to or over %d, out of memory very likely so skipping",
			capacity, p.settings.MaxCapacity)
		return errors.Wrapf(ErrCapacityRefused, "%d bytes", capacity)
	}
	fail := func(err error, what string) error {
		p.release()
		return errors.Wrapf(err, "Creating %v of %d bytes", what, capacity)
	}
	size := capacity + p.settings.CounterBytes
	var err error
	p.streamOut, err = p.device.CreateBuffer(ctx, gpu.BufferDesc{
		Label: p.label("stream-out"),
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
		Heap:  gpu.HeapDefault,
	})
	if err != nil {
		return fail(err, "stream-out buffer")
	}
	p.readback, err = p.device.CreateBuffer(ctx, gpu.BufferDesc{
		Label: p.label("readback"),
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		Heap:  gpu.HeapReadback,
	})
	if err != nil {
		return fail(err, "readback buffer")
	}
	// The capacity holds at most capacity/16 float4 vertices, each needing
	// one uint32 index.
	p.indices, err = p.device.CreateBuffer(ctx, gpu.BufferDesc{
		Label: p.label("indices"),
		Size:  capacity / 4,
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		Heap:  gpu.HeapUpload,
	})
	if err != nil {
		return fail(err, "index buffer")
	}
	p.queries, err = p.device.CreateQuerySet(ctx, p.label("statistics"), queryCount)
	if err != nil {
		return fail(err, "query set")
	}
	p.capacity = capacity
	p.recreations++
	if config.LogPoolAllocations {
		log.I(ctx, "Allocated stream-out pool %v of %d bytes", p.id, capacity)
	}
	return nil
}

func (p *Pool) label(what string) string {
	return fmt.Sprintf("postvs %v %v", what, p.id)
}

// release frees every resource and zeroes the capacity.
func (p *Pool) release() {
	for _, r := range []gpu.Resource{p.streamOut, p.readback, p.indices, p.queries} {
		if r != nil {
			p.device.Release(r)
		}
	}
	p.streamOut, p.readback, p.indices, p.queries = nil, nil, nil, nil
	p.capacity = 0
}

// Release frees the pool's resources.
func (p *Pool) Release(ctx context.Context) {
	if p.Ready() {
		log.D(ctx, "Releasing stream-out pool %v", p.id)
	}
	p.release()
}

// streamOutTarget binds the stream-out buffer with the counter at counterOffset and
// data from dataOffset to the end of the buffer.
func (p *Pool) streamOutTarget(counterOffset, dataOffset uint64) gpu.StreamOutTarget {
	return gpu.StreamOutTarget{
		Buffer:        p.streamOut,
		CounterOffset: counterOffset,
		DataOffset:    dataOffset,
		Size:          p.streamOut.Size() - dataOffset,
	}
}

// Reset records the discard and zeroing of the stream-out buffer, leaving
// every counter at zero for the next capture.
func (p *Pool) Reset(list gpu.CommandList) {
	list.Discard(p.streamOut)
	list.ClearBuffer(p.streamOut, 0, p.streamOut.Size())
}

// Resolve records the copy of the stream-out buffer to the readback mirror
// followed by a Reset.
func (p *Pool) Resolve(list gpu.CommandList) {
	list.Barrier(p.streamOut)
	list.CopyBuffer(p.readback, 0, p.streamOut, 0, p.streamOut.Size())
	p.Reset(list)
}

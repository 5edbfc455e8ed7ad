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

// Package softgpu is a CPU implementation of the gpu interfaces.
//
// Submitted command lists are executed when the device is synced. Shader
// stages are Go functions registered against the shader's identifier, and
// stream output, statistics queries and primitive assembly behave as the
// capture engine expects of real hardware.
package softgpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/fault"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/gpu"
	"github.com/google/uuid"
)

const (
	// ErrOutOfMemory is returned when an allocation exceeds the memory limit.
	ErrOutOfMemory = fault.Const("Out of GPU memory")
	// ErrDeviceLost is returned by every operation once the device is lost.
	ErrDeviceLost = fault.Const("Device lost")
	// ErrNotMappable is returned when mapping a buffer on the default heap.
	ErrNotMappable = fault.Const("Buffer is not CPU accessible")
	// ErrInjected is the default error of FailNext.
	ErrInjected = fault.Const("Injected failure")
)

// Op identifies a device operation for failure injection.
type Op int

const (
	OpCreateBuffer Op = iota
	OpCreateQuerySet
	OpCreatePipeline
	OpCreateRootSignature
	OpNewCommandList
	OpSubmit
	OpSync
	OpMap
)

// Stats counts device activity.
type Stats struct {
	BuffersCreated  int
	BuffersReleased int
	Submits         int
	Syncs           int
	Draws           int
	// MaxInFlightDraws is the largest number of draws executed by one Sync.
	MaxInFlightDraws int
	// OOMs counts allocations refused for lack of memory.
	OOMs int
}

// Device is a software gpu.Device.
type Device struct {
	mu        sync.Mutex
	limit     uint64
	allocated uint64
	live      map[*buffer]struct{}
	fail      map[Op][]error
	vertex    map[uuid.UUID]VertexFunc
	primitive map[uuid.UUID]PrimitiveFunc
	pending   []*commandList
	oomScopes int
	lost      bool
	stats     Stats
}

var _ gpu.Device = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithMemoryLimit limits the total size of live buffers.
func WithMemoryLimit(bytes uint64) Option {
	return func(d *Device) { d.limit = bytes }
}

// New returns a new software device.
func New(opts ...Option) *Device {
	d := &Device{
		live:      map[*buffer]struct{}{},
		fail:      map[Op][]error{},
		vertex:    map[uuid.UUID]VertexFunc{},
		primitive: map[uuid.UUID]PrimitiveFunc{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// FailNext makes the next call of op return err, or ErrInjected if err is
// nil. Calls queue up in order.
func (d *Device) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = append(d.fail[op], err)
}

// SetMemoryLimit changes the memory limit. Zero removes the limit.
func (d *Device) SetMemoryLimit(bytes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limit = bytes
}

// Lost returns true if an out-of-memory condition outside a tolerated scope
// lost the device.
func (d *Device) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LiveBuffers returns the number of buffers not yet released.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Allocated returns the total size of live buffers.
func (d *Device) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// check must be called with the lock held.
func (d *Device) check(op Op) error {
	if d.lost {
		return ErrDeviceLost
	}
	if errs := d.fail[op]; len(errs) > 0 {
		d.fail[op] = errs[1:]
		return errs[0]
	}
	return nil
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(ctx context.Context, desc gpu.BufferDesc) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpCreateBuffer); err != nil {
		return nil, err
	}
	if d.limit > 0 && (desc.Size > d.limit || d.allocated+desc.Size > d.limit) {
		d.stats.OOMs++
		if d.oomScopes == 0 {
			d.lost = true
			log.W(ctx, "Allocation of %d bytes lost the device", desc.Size)
		}
		return nil, ErrOutOfMemory
	}
	b := &buffer{desc: desc, id: uuid.New()}
	d.live[b] = struct{}{}
	d.allocated += desc.Size
	d.stats.BuffersCreated++
	return b, nil
}

// CreateBufferWithData creates an upload heap buffer holding data.
func (d *Device) CreateBufferWithData(ctx context.Context, label string, usage gputypes.BufferUsage, data []byte) (gpu.Buffer, error) {
	buf, err := d.CreateBuffer(ctx, gpu.BufferDesc{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopySrc,
		Heap:  gpu.HeapUpload,
	})
	if err != nil {
		return nil, err
	}
	return buf, d.Write(ctx, buf, 0, data)
}

// CreateQuerySet implements gpu.Device.
func (d *Device) CreateQuerySet(ctx context.Context, label string, count int) (gpu.QuerySet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpCreateQuerySet); err != nil {
		return nil, err
	}
	return &querySet{label: label, results: make([]gpu.StreamOutStatistics, count)}, nil
}

// NewRootSignature returns a root signature for building test states.
func (d *Device) NewRootSignature(label string, streamOut bool) gpu.RootSignature {
	return &rootSignature{label: label, streamOut: streamOut}
}

// CreateStreamOutRootSignature implements gpu.Device.
func (d *Device) CreateStreamOutRootSignature(ctx context.Context, base gpu.RootSignature) (gpu.RootSignature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpCreateRootSignature); err != nil {
		return nil, err
	}
	label := "stream-out"
	if base != nil {
		label = base.Label() + "+stream-out"
	}
	return &rootSignature{label: label, streamOut: true}, nil
}

// CreatePipeline implements gpu.Device.
func (d *Device) CreatePipeline(ctx context.Context, desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpCreatePipeline); err != nil {
		return nil, err
	}
	if desc.VS == nil {
		return nil, fmt.Errorf("Pipeline %v has no vertex shader", desc.Label)
	}
	if len(desc.StreamOut.Entries) > 0 && (desc.RootSignature == nil || !desc.RootSignature.AllowsStreamOut()) {
		return nil, fmt.Errorf("Root signature of pipeline %v does not allow stream output", desc.Label)
	}
	p := &pipeline{desc: desc}
	if p.vs = d.vertex[desc.VS.ID]; p.vs == nil {
		return nil, fmt.Errorf("No program registered for vertex shader %v", desc.VS.ID)
	}
	for _, s := range []*gpu.Shader{desc.DS, desc.GS} {
		if s == nil {
			continue
		}
		fn := d.primitive[s.ID]
		if fn == nil {
			return nil, fmt.Errorf("No program registered for shader %v", s.ID)
		}
		p.stages = append(p.stages, stage{fn: fn, shader: s})
	}
	return p, nil
}

// NewCommandList implements gpu.Device.
func (d *Device) NewCommandList(ctx context.Context) (gpu.CommandList, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpNewCommandList); err != nil {
		return nil, err
	}
	return &commandList{}, nil
}

// Submit implements gpu.Device.
func (d *Device) Submit(ctx context.Context, list gpu.CommandList) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpSubmit); err != nil {
		return err
	}
	l, ok := list.(*commandList)
	if !ok {
		return fmt.Errorf("Command list %T was not created by this device", list)
	}
	if !l.closed {
		return fmt.Errorf("Command list submitted before Close")
	}
	d.pending = append(d.pending, l)
	d.stats.Submits++
	return nil
}

// Sync implements gpu.Device, executing every submitted list.
func (d *Device) Sync(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpSync); err != nil {
		return err
	}
	draws := 0
	for _, l := range d.pending {
		e := &executor{device: d}
		for _, cmd := range l.commands {
			cmd(e)
		}
		draws += e.draws
	}
	d.pending = nil
	d.stats.Syncs++
	d.stats.Draws += draws
	if draws > d.stats.MaxInFlightDraws {
		d.stats.MaxInFlightDraws = draws
	}
	return nil
}

// Map implements gpu.Device.
func (d *Device) Map(ctx context.Context, buf gpu.Buffer, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpMap); err != nil {
		return nil, err
	}
	b := buf.(*buffer)
	if b.desc.Heap == gpu.HeapDefault {
		return nil, ErrNotMappable
	}
	if b.released {
		return nil, fmt.Errorf("Map of released buffer %v", b.Label())
	}
	if offset > b.desc.Size || size > b.desc.Size-offset {
		return nil, fmt.Errorf("Map range [%d, %d) outside buffer %v of %d bytes", offset, offset+size, b.Label(), b.desc.Size)
	}
	b.mapped = true
	return b.bytes()[offset : offset+size], nil
}

// Unmap implements gpu.Device.
func (d *Device) Unmap(buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf.(*buffer).mapped = false
}

// Write implements gpu.Device.
func (d *Device) Write(ctx context.Context, buf gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return ErrDeviceLost
	}
	b := buf.(*buffer)
	if b.desc.Heap != gpu.HeapUpload {
		return fmt.Errorf("Write to buffer %v on %v heap", b.Label(), b.desc.Heap)
	}
	if offset > b.desc.Size || uint64(len(data)) > b.desc.Size-offset {
		return fmt.Errorf("Write of %d bytes at %d overflows buffer %v", len(data), offset, b.Label())
	}
	copy(b.bytes()[offset:], data)
	return nil
}

// Release implements gpu.Device.
func (d *Device) Release(r gpu.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := r.(*buffer)
	if !ok || b.released {
		return
	}
	b.released = true
	b.data = nil
	delete(d.live, b)
	d.allocated -= b.desc.Size
	d.stats.BuffersReleased++
}

// TolerateOOM implements gpu.Device.
func (d *Device) TolerateOOM() func() {
	d.mu.Lock()
	d.oomScopes++
	d.mu.Unlock()
	once := sync.Once{}
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.oomScopes--
			d.mu.Unlock()
		})
	}
}

// RegisterVertexProgram binds fn as the implementation of vertex shader s.
func (d *Device) RegisterVertexProgram(s *gpu.Shader, fn VertexFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vertex[s.ID] = fn
}

// RegisterPrimitiveProgram binds fn as the implementation of the geometry or
// domain shader s.
func (d *Device) RegisterPrimitiveProgram(s *gpu.Shader, fn PrimitiveFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primitive[s.ID] = fn
}

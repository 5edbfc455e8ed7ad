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
	"encoding/binary"

	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu"
)

// DiscoveryState is a state of the stream-out size discovery protocol.
type DiscoveryState int

const (
	Idle DiscoveryState = iota
	Probing
	Resizing
	Executing
	Done
)

func (s DiscoveryState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Probing:
		return "Probing"
	case Resizing:
		return "Resizing"
	case Executing:
		return "Executing"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// discovery captures a stage whose output size depends on the data: it
// probes the draw for the storage its primitives need, grows the pool until
// they fit, and for multi-instance draws replays 1..N instances so each
// instance's share of the output can be recovered from its own counter.
type discovery struct {
	s         *Session
	draw      *gpu.DrawRequest
	state     *gpu.RenderState
	pipe      gpu.Pipeline
	sig       gpu.RootSignature
	stride    uint64
	vpp       uint64
	instances uint32

	current  DiscoveryState
	trace    []DiscoveryState
	resizes  int
	required uint64
	// counterBytes is the size of the counter area ahead of the data.
	counterBytes uint64
}

func newDiscovery(s *Session, d *gpu.DrawRequest, state *gpu.RenderState, pipe gpu.Pipeline, sig gpu.RootSignature, stride uint32, vpp uint64) *discovery {
	c := &discovery{
		s:            s,
		draw:         d,
		state:        state,
		pipe:         pipe,
		sig:          sig,
		stride:       uint64(stride),
		vpp:          vpp,
		instances:    d.NumInstances,
		counterBytes: s.settings.CounterBytes,
	}
	if c.multiInstance() {
		c.counterBytes = alignUp(uint64(d.NumInstances)*8, s.settings.CounterBytes)
	}
	return c
}

func (c *discovery) multiInstance() bool { return c.instances > 1 }

func (c *discovery) enter(ctx context.Context, state DiscoveryState) {
	if config.DebugCapture {
		log.D(ctx, "Discovery %v -> %v", c.current, state)
	}
	c.current = state
	c.trace = append(c.trace, state)
}

// run drives the state machine to Done, leaving the output in the pool's
// readback buffer.
func (c *discovery) run(ctx context.Context) *CaptureError {
	pool := c.s.pool
	c.current = Idle
	c.trace = []DiscoveryState{Idle}
	for {
		switch c.current {
		case Idle:
			if !pool.Ready() {
				if err := pool.EnsureCapacity(ctx, c.counterBytes); err != nil {
					return newError(ResourceExhausted, err, statusGeometryOOM, pool.Target(c.counterBytes))
				}
			}
			c.enter(ctx, Probing)

		case Probing:
			needed, err := c.probe(ctx)
			if err != nil {
				return err
			}
			c.required = outputBytes(c.counterBytes, needed, c.vpp, c.stride)
			c.enter(ctx, Resizing)

		case Resizing:
			if c.required <= pool.Capacity() {
				c.enter(ctx, Executing)
				continue
			}
			if c.resizes >= c.s.settings.MaxResizeIterations {
				return newError(ResourceExhausted, nil, statusResizeLimit, c.resizes)
			}
			c.resizes++
			size := pool.Target(c.required)
			if err := pool.EnsureCapacity(ctx, c.required); err != nil {
				return newError(ResourceExhausted, err, statusGeometryOOM, size)
			}
			c.enter(ctx, Probing)

		case Executing:
			if c.multiInstance() {
				if err := c.executeInstances(ctx); err != nil {
					return err
				}
			}
			// A single instance draw's last probe already wrote its output.
			if err := c.resolve(ctx); err != nil {
				return err
			}
			c.enter(ctx, Done)

		case Done:
			return nil
		}
	}
}

func (c *discovery) newList(ctx context.Context) (gpu.CommandList, *CaptureError) {
	list, err := c.s.device.NewCommandList(ctx)
	if err != nil {
		return nil, newError(DeviceError, err, statusSubmit, err)
	}
	bind(list, c.state, c.pipe, c.sig)
	return list, nil
}

// probe submits the full draw with statistics collection and returns the
// number of primitives it needs storage for.
func (c *discovery) probe(ctx context.Context) (uint64, *CaptureError) {
	pool := c.s.pool
	list, cerr := c.newList(ctx)
	if cerr != nil {
		return 0, cerr
	}
	list.SetStreamOutTarget(pool.streamOutTarget(0, c.s.settings.CounterBytes))
	list.BeginQuery(pool.Queries(), 0)
	draw(list, c.draw, c.draw.NumInstances)
	list.EndQuery(pool.Queries(), 0)
	list.ResolveQuery(pool.Queries(), 0, pool.Readback(), 0)
	if err := c.s.submit(ctx, list); err != nil {
		return 0, newError(DeviceError, err, statusSubmit, err)
	}
	data, err := c.s.device.Map(ctx, pool.Readback(), 0, gpu.StreamOutStatisticsSize)
	if err != nil {
		return 0, newError(DeviceError, err, statusStatistics, err)
	}
	stats := gpu.StreamOutStatistics{
		PrimitivesWritten:       binary.LittleEndian.Uint64(data),
		PrimitivesStorageNeeded: binary.LittleEndian.Uint64(data[8:]),
	}
	c.s.device.Unmap(pool.Readback())
	log.D(ctx, "Stream-out probe wrote %d of %d primitives", stats.PrimitivesWritten, stats.PrimitivesStorageNeeded)
	return stats.PrimitivesStorageNeeded, nil
}

// executeInstances replays the draw with 1..N instances, each writing its
// running byte total to its own counter. The lists are synced every
// InstanceSyncInterval draws to bound the work in flight.
func (c *discovery) executeInstances(ctx context.Context) *CaptureError {
	pool := c.s.pool
	list, err := c.s.device.NewCommandList(ctx)
	if err != nil {
		return newError(DeviceError, err, statusSubmit, err)
	}
	list.ClearBuffer(pool.StreamOut(), 0, pool.StreamOut().Size())
	list.Barrier(pool.StreamOut())
	bind(list, c.state, c.pipe, c.sig)
	interval := uint32(c.s.settings.InstanceSyncInterval)
	for inst := uint32(1); inst <= c.instances; inst++ {
		list.SetStreamOutTarget(pool.streamOutTarget(uint64(inst-1)*8, c.counterBytes))
		draw(list, c.draw, inst)
		if inst%interval == 0 && inst < c.instances {
			if err := c.s.submit(ctx, list); err != nil {
				return newError(DeviceError, err, statusSubmit, err)
			}
			var cerr *CaptureError
			if list, cerr = c.newList(ctx); cerr != nil {
				return cerr
			}
		}
	}
	if err := c.s.submit(ctx, list); err != nil {
		return newError(DeviceError, err, statusSubmit, err)
	}
	return nil
}

// resolve copies the stream-out buffer to the readback mirror and resets it.
func (c *discovery) resolve(ctx context.Context) *CaptureError {
	list, err := c.s.device.NewCommandList(ctx)
	if err != nil {
		return newError(DeviceError, err, statusSubmit, err)
	}
	c.s.pool.Resolve(list)
	if err := c.s.submit(ctx, list); err != nil {
		return newError(DeviceError, err, statusSubmit, err)
	}
	return nil
}

// SplitInstances derives each instance's vertex count and byte offset from
// the running byte totals written after each of 1..N instances.
func SplitInstances(counters []uint64, stride uint32) (instances []InstanceData, total uint64) {
	instances = make([]InstanceData, len(counters))
	prev := uint64(0)
	for i, count := range counters {
		instances[i].ByteOffset = prev
		if count < prev || stride == 0 {
			continue
		}
		instances[i].NumVerts = uint32((count - prev) / uint64(stride))
		prev = count
	}
	return instances, prev
}

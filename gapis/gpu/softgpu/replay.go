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
	"context"
	"fmt"
	"sort"

	"github.com/google/postvs/gapis/gpu"
)

// Event is one event of a Replay.
type Event struct {
	ID uint32
	// Draw is nil for events that are not draws.
	Draw  *gpu.DrawRequest
	State *gpu.RenderState
	// Aliases lists later events that re-execute this draw.
	Aliases []uint32
}

// Replay is a gpu.Replay over a fixed list of events.
type Replay struct {
	device  *Device
	events  []Event
	current *gpu.RenderState
	// Executed counts the draws replayed.
	Executed int
}

var _ gpu.Replay = (*Replay)(nil)

// NewReplay returns a replay of events, which are sorted by ID.
func NewReplay(device *Device, events ...Event) *Replay {
	sorted := append([]Event{}, events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := range sorted {
		if sorted[i].Draw != nil {
			sorted[i].Draw.EventID = sorted[i].ID
		}
	}
	return &Replay{device: device, events: sorted, current: &gpu.RenderState{}}
}

// Device implements gpu.Replay.
func (r *Replay) Device() gpu.Device { return r.device }

func (r *Replay) event(id uint32) *Event {
	i := sort.Search(len(r.events), func(i int) bool { return r.events[i].ID >= id })
	if i < len(r.events) && r.events[i].ID == id {
		return &r.events[i]
	}
	return nil
}

// Action implements gpu.Replay.
func (r *Replay) Action(eventID uint32) *gpu.DrawRequest {
	if e := r.event(eventID); e != nil {
		return e.Draw
	}
	return nil
}

// State implements gpu.Replay.
func (r *Replay) State() *gpu.RenderState { return r.current }

// ReplayRange implements gpu.Replay.
func (r *Replay) ReplayRange(ctx context.Context, first, last uint32, mode gpu.ReplayMode, cb gpu.ReplayCallback) error {
	if first > last {
		return fmt.Errorf("Invalid replay range [%d, %d]", first, last)
	}
	for i := range r.events {
		e := &r.events[i]
		if e.ID < first || e.ID > last {
			continue
		}
		if e.State != nil {
			r.current = e.State
		}
		if e.Draw == nil {
			continue
		}
		switch {
		case mode == gpu.ReplayWithoutDraw && e.ID == last:
			continue
		case mode == gpu.ReplayOnlyDraw && e.ID != last:
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if cb != nil {
			cb.PreDraw(ctx, e.ID)
		}
		r.Executed++
		if cb != nil {
			cb.PostDraw(ctx, e.ID)
			for _, alias := range e.Aliases {
				cb.AliasEvent(ctx, e.ID, alias)
			}
		}
	}
	return nil
}

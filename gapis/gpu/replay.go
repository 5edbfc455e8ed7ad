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

import "context"

// ReplayMode selects what ReplayRange executes.
type ReplayMode int

const (
	// ReplayFull executes every event in the range.
	ReplayFull ReplayMode = iota
	// ReplayWithoutDraw executes up to, but not including, the last event.
	ReplayWithoutDraw
	// ReplayOnlyDraw executes only the last event.
	ReplayOnlyDraw
)

// ReplayCallback is notified while a range of events is replayed.
type ReplayCallback interface {
	// PreDraw is called before a draw event executes, with the state of the
	// draw current.
	PreDraw(ctx context.Context, eventID uint32)
	PostDraw(ctx context.Context, eventID uint32)
	// AliasEvent is called when alias re-executes primary's draw.
	AliasEvent(ctx context.Context, primary, alias uint32)
}

// Replay gives access to the events of a capture.
type Replay interface {
	Device() Device
	// Action returns the draw at eventID, or nil if the event is not a draw.
	Action(eventID uint32) *DrawRequest
	// State returns the render state at the current replay position.
	State() *RenderState
	// ReplayRange replays the events between first and last inclusive.
	ReplayRange(ctx context.Context, first, last uint32, mode ReplayMode, cb ReplayCallback) error
}

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

	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/gpu"
	"golang.org/x/exp/slices"
)

// CaptureEvents captures the outputs of every draw in events with a single
// replay. Events are captured just before they draw, and aliases reported
// by the replay for captured events are recorded.
func (s *Session) CaptureEvents(ctx context.Context, events []uint32) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := slices.Clone(events)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	first, last := sorted[0], sorted[len(sorted)-1]

	if err := s.replay.ReplayRange(ctx, 0, first, gpu.ReplayWithoutDraw, nil); err != nil {
		return log.Errf(ctx, err, "Replaying to event %d", first)
	}
	cb := &captureCallback{s: s, events: sorted}
	if err := s.replay.ReplayRange(ctx, first, last, gpu.ReplayFull, cb); err != nil {
		return log.Errf(ctx, err, "Replaying events %d to %d", first, last)
	}
	log.D(ctx, "Captured %d events", cb.captured)
	return nil
}

type captureCallback struct {
	s        *Session
	events   []uint32
	captured int
}

func (c *captureCallback) wanted(eventID uint32) bool {
	_, found := slices.BinarySearch(c.events, eventID)
	return found
}

func (c *captureCallback) PreDraw(ctx context.Context, eventID uint32) {
	if c.wanted(eventID) {
		c.s.captureOutputs(ctx, eventID, false)
		c.captured++
	}
}

func (c *captureCallback) PostDraw(ctx context.Context, eventID uint32) {}

func (c *captureCallback) AliasEvent(ctx context.Context, primary, alias uint32) {
	if c.wanted(primary) {
		c.s.cache.Alias(primary, alias)
	}
}

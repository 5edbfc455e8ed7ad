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
	"sync"

	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/gpu"
)

// Cache maps draw events to their capture results. An alias event shares
// its primary's result.
type Cache struct {
	mu      sync.Mutex
	results map[uint32]*CaptureResult
	aliases map[uint32]uint32
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{results: map[uint32]*CaptureResult{}, aliases: map[uint32]uint32{}}
}

// Resolve returns the primary event of eventID.
func (c *Cache) Resolve(eventID uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolve(eventID)
}

func (c *Cache) resolve(eventID uint32) uint32 {
	if primary, ok := c.aliases[eventID]; ok {
		return primary
	}
	return eventID
}

// Lookup returns the result of eventID, or of its primary, or nil.
func (c *Cache) Lookup(eventID uint32) *CaptureResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[c.resolve(eventID)]
}

// Store records the result of eventID.
func (c *Cache) Store(eventID uint32, r *CaptureResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[eventID] = r
}

// Alias makes alias share the result of primary.
func (c *Cache) Alias(primary, alias uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = primary
}

// Len returns the number of stored results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Clear releases the buffers of every result and empties the cache.
// Aliases are kept.
func (c *Cache) Clear(ctx context.Context, device gpu.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.results {
		r.release(ctx, device)
		delete(c.results, id)
	}
	log.D(ctx, "Cleared post-transform cache")
}

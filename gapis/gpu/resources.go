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

import "github.com/gogpu/gputypes"

// Heap identifies the memory a buffer is placed in.
type Heap int

const (
	// HeapDefault is GPU-local memory. It cannot be mapped.
	HeapDefault Heap = iota
	// HeapUpload is CPU-writable memory the GPU reads from.
	HeapUpload
	// HeapReadback is memory the GPU writes and the CPU maps for reading.
	HeapReadback
)

func (h Heap) String() string {
	switch h {
	case HeapDefault:
		return "Default"
	case HeapUpload:
		return "Upload"
	case HeapReadback:
		return "Readback"
	default:
		return "Unknown"
	}
}

// Resource is any object created by a Device.
type Resource interface {
	// Label returns the debug name the resource was created with.
	Label() string
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Resource
	Size() uint64
	Usage() gputypes.BufferUsage
	Heap() Heap
}

// QuerySet is a set of stream-out statistics query slots.
type QuerySet interface {
	Resource
	Count() int
}

// Pipeline is a compiled pipeline state object.
type Pipeline interface {
	Resource
}

// RootSignature describes the resource bindings of a pipeline.
type RootSignature interface {
	Resource
	// AllowsStreamOut returns true if pipelines using the signature may
	// write stream output.
	AllowsStreamOut() bool
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
	Heap  Heap
}

// StreamOutStatistics is the layout of a resolved stream-out statistics
// query: two little-endian uint64 values.
type StreamOutStatistics struct {
	PrimitivesWritten       uint64
	PrimitivesStorageNeeded uint64
}

// StreamOutStatisticsSize is the number of bytes a resolved query occupies.
const StreamOutStatisticsSize = 16

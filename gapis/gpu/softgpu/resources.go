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
	"github.com/google/uuid"
)

type buffer struct {
	desc     gpu.BufferDesc
	id       uuid.UUID
	data     []byte
	mapped   bool
	released bool
}

func (b *buffer) Label() string               { return b.desc.Label }
func (b *buffer) Size() uint64                { return b.desc.Size }
func (b *buffer) Usage() gputypes.BufferUsage { return b.desc.Usage }
func (b *buffer) Heap() gpu.Heap              { return b.desc.Heap }

// bytes returns the backing store, allocating it on first use so that large
// scratch buffers cost nothing until written.
func (b *buffer) bytes() []byte {
	if b.data == nil && !b.released {
		b.data = make([]byte, b.desc.Size)
	}
	return b.data
}

type querySet struct {
	label   string
	results []gpu.StreamOutStatistics
}

func (q *querySet) Label() string { return q.label }
func (q *querySet) Count() int    { return len(q.results) }

type rootSignature struct {
	label     string
	streamOut bool
}

func (r *rootSignature) Label() string         { return r.label }
func (r *rootSignature) AllowsStreamOut() bool { return r.streamOut }

type stage struct {
	fn     PrimitiveFunc
	shader *gpu.Shader
}

type pipeline struct {
	desc   gpu.PipelineDesc
	vs     VertexFunc
	stages []stage
}

func (p *pipeline) Label() string { return p.desc.Label }

// outputs returns the signature of the last stage.
func (p *pipeline) outputs() []gpu.SignatureParam {
	if n := len(p.stages); n > 0 {
		return p.stages[n-1].shader.Outputs
	}
	return p.desc.VS.Outputs
}

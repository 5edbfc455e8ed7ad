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

// PipelineState is the reflected state of the pipeline bound at a draw.
type PipelineState struct {
	// Compute is true when the bound pipeline is a compute pipeline.
	Compute bool
	VS      *Shader
	HS      *Shader
	DS      *Shader
	GS      *Shader
	// Topology is the primitive topology class the pipeline was built for.
	Topology      Topology
	RootSignature RootSignature
	// StripCut is true when primitive restart is enabled. The sentinel is
	// the all-ones value of the bound index width.
	StripCut         bool
	RasterizedStream int32
}

// LastGeometryStage returns the last stage able to amplify geometry, or nil.
func (p *PipelineState) LastGeometryStage() *Shader {
	if p.GS != nil {
		return p.GS
	}
	return p.DS
}

// VertexBinding binds a vertex buffer to an input slot.
type VertexBinding struct {
	Buffer   Buffer
	Offset   uint64
	Stride   uint32
	Format   gputypes.VertexFormat
	StepMode gputypes.VertexStepMode
}

// IndexBinding binds an index buffer.
type IndexBinding struct {
	Buffer Buffer
	Offset uint64
	Format gputypes.IndexFormat
}

// RenderState is the state current at a draw event.
type RenderState struct {
	// Pipeline is nil when no pipeline is bound.
	Pipeline      *PipelineState
	Topology      Topology
	VertexBuffers []VertexBinding
	IndexBuffer   IndexBinding
}

// PipelineDesc describes a pipeline to create.
type PipelineDesc struct {
	Label         string
	VS, HS, DS    *Shader
	GS            *Shader
	Topology      Topology
	RootSignature RootSignature
	StreamOut     StreamOutDesc
	StripCut      bool
}

// DrawFlags describe a draw call.
type DrawFlags uint32

const (
	Indexed DrawFlags = 1 << iota
	Instanced
)

// DrawRequest describes a draw event to capture.
type DrawRequest struct {
	EventID        uint32
	NumIndices     uint32
	NumInstances   uint32
	Flags          DrawFlags
	VertexOffset   uint32
	IndexOffset    uint32
	BaseVertex     int32
	InstanceOffset uint32
	// IndexWidth is the byte width of the index data, 2 or 4.
	IndexWidth uint32
	// IndexData holds the indices the draw reads. It may contain fewer than
	// NumIndices entries when the read ran past the end of the buffer.
	IndexData []byte
}

// Is returns true if all of flags are set.
func (d *DrawRequest) Is(flags DrawFlags) bool { return d.Flags&flags == flags }

// IndexFormat returns the index format of an indexed draw.
func (d *DrawRequest) IndexFormat() gputypes.IndexFormat {
	if d.IndexWidth == 2 {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

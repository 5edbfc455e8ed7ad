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

import "github.com/google/uuid"

// SignatureParam is one attribute of a shader's output signature.
type SignatureParam struct {
	SemanticName   string
	SemanticIndex  uint32
	ComponentCount uint32
	// Position is true for the system-value clip-space position output.
	Position bool
	// Stream is the geometry output stream the attribute is emitted to.
	Stream uint32
}

// Shader is the reflection of one pipeline stage.
type Shader struct {
	ID      uuid.UUID
	Outputs []SignatureParam
	// OutputTopology is the primitive topology emitted by geometry and
	// domain shaders. It is TopologyUndefined for other stages.
	OutputTopology Topology
}

// NewShader returns a shader with a fresh identifier.
func NewShader(outputs []SignatureParam, topology Topology) *Shader {
	return &Shader{ID: uuid.New(), Outputs: outputs, OutputTopology: topology}
}

// PositionIndex returns the index of the position output, or -1 if there is
// none.
func (s *Shader) PositionIndex() int {
	for i, p := range s.Outputs {
		if p.Position {
			return i
		}
	}
	return -1
}

// StreamOutEntry is one element of a stream-out declaration.
type StreamOutEntry struct {
	Stream         uint32
	SemanticName   string
	SemanticIndex  uint32
	StartComponent uint32
	ComponentCount uint32
	OutputSlot     uint32
}

// NoRasterizedStream disables rasterization of a pipeline's output.
const NoRasterizedStream = -1

// StreamOutDesc is the stream-out configuration of a pipeline.
type StreamOutDesc struct {
	Entries          []StreamOutEntry
	Stride           uint32
	RasterizedStream int32
}

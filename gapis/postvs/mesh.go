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
	"github.com/gogpu/gputypes"
	"github.com/google/postvs/gapis/gpu"
)

// Stage selects the capture pass a mesh is taken from.
type Stage int

const (
	// VertexStage is the output of the vertex shader.
	VertexStage Stage = iota
	// GeometryStage is the output of the geometry or tessellation stages.
	GeometryStage
)

func (s Stage) String() string {
	if s == GeometryStage {
		return "GS"
	}
	return "VS"
}

// MeshView describes how to read the captured mesh of one instance.
type MeshView struct {
	EventID          uint32
	Stage            Stage
	VertexBuffer     gpu.Buffer
	VertexByteOffset uint64
	VertexByteStride uint32
	NumIndices       uint32
	Format           gputypes.VertexFormat
	IndexBuffer      gpu.Buffer
	// IndexByteStride is 0 for non-indexed meshes. It is set without an
	// IndexBuffer when indices are needed but none could be captured.
	IndexByteStride uint32
	Topology        gpu.Topology
	// Unproject is true when the first attribute is a clip-space position.
	Unproject bool
	Near, Far float32
	Status    string
}

// meshView builds the view of instance of a stage.
func meshView(r *CaptureResult, eventID, instance uint32, stage Stage) MeshView {
	view := MeshView{EventID: eventID, Stage: stage, Format: gputypes.VertexFormatFloat32x4}
	if r == nil {
		return view
	}
	data := r.Stage(stage)
	view.Status = data.Status()
	view.Topology = r.Topology
	out := data.Output()
	if out == nil {
		return view
	}
	switch {
	case out.UseIndices && out.IndexBuffer != nil:
		view.IndexBuffer = out.IndexBuffer
		view.IndexByteStride = out.IndexWidth
	case out.UseIndices:
		view.IndexByteStride = 4
	}
	view.VertexBuffer = out.Buffer
	view.VertexByteStride = out.Stride
	view.NumIndices = out.NumVerts
	view.VertexByteOffset = out.InstanceStride * uint64(instance)
	if int(instance) < len(out.Instances) {
		view.VertexByteOffset = out.Instances[instance].ByteOffset
		view.NumIndices = out.Instances[instance].NumVerts
	}
	view.Topology = out.Topology
	view.Unproject = out.HasPosition
	view.Near, view.Far = out.Near, out.Far
	return view
}

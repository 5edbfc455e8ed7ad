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

import "github.com/google/postvs/gapis/gpu"

// assemble groups verts into primitives of topology t. Nil vertices are
// primitive restarts and end the current strip.
func assemble(t gpu.Topology, verts []Vertex) [][]Vertex {
	var prims [][]Vertex
	start := 0
	for i := 0; i <= len(verts); i++ {
		if i < len(verts) && verts[i] != nil {
			continue
		}
		prims = append(prims, assembleRun(t, verts[start:i])...)
		start = i + 1
	}
	return prims
}

func assembleRun(t gpu.Topology, run []Vertex) [][]Vertex {
	count := int(t.PrimitiveCount(uint64(len(run))))
	prims := make([][]Vertex, 0, count)
	vpp := int(t.VerticesPerPrimitive())
	for p := 0; p < count; p++ {
		switch t {
		case gpu.LineStrip, gpu.LineStripAdj:
			prims = append(prims, run[p:p+vpp])
		case gpu.TriangleStrip:
			if p%2 == 0 {
				prims = append(prims, []Vertex{run[p], run[p+1], run[p+2]})
			} else {
				prims = append(prims, []Vertex{run[p+1], run[p], run[p+2]})
			}
		case gpu.TriangleStripAdj:
			prims = append(prims, run[2*p:2*p+6])
		default:
			prims = append(prims, run[p*vpp:(p+1)*vpp])
		}
	}
	return prims
}

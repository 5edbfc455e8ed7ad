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

// Vertex is the output of a shader stage for one vertex: one value slice
// per output signature parameter.
type Vertex [][]float32

// VertexInput is handed to a VertexFunc.
type VertexInput struct {
	VertexID   uint32
	InstanceID uint32
	// Attributes holds the fetched value of each bound vertex buffer.
	Attributes [][]float32
}

// VertexFunc implements a vertex shader.
type VertexFunc func(in VertexInput) Vertex

// PrimitiveInput is handed to a PrimitiveFunc.
type PrimitiveInput struct {
	Vertices    []Vertex
	PrimitiveID uint32
	InstanceID  uint32
}

// PrimitiveFunc implements a geometry or domain shader. It returns the
// emitted vertices in the list form of the shader's output topology.
type PrimitiveFunc func(in PrimitiveInput) []Vertex

// PassThrough returns a VertexFunc that outputs the first bound attribute as
// each of n outputs.
func PassThrough(n int) VertexFunc {
	return func(in VertexInput) Vertex {
		v := make(Vertex, n)
		for i := range v {
			if len(in.Attributes) > 0 {
				v[i] = in.Attributes[0]
			}
		}
		return v
	}
}

// Amplify returns a PrimitiveFunc that emits each input primitive count
// times, as a list of the same primitive type.
func Amplify(count int) PrimitiveFunc {
	return func(in PrimitiveInput) []Vertex {
		out := make([]Vertex, 0, count*len(in.Vertices))
		for i := 0; i < count; i++ {
			out = append(out, in.Vertices...)
		}
		return out
	}
}

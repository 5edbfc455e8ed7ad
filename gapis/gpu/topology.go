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

// Package gpu declares the device, command list and replay interfaces the
// post-transform capture engine drives, along with the state types they
// exchange.
package gpu

import "fmt"

// Topology is the primitive topology of a draw.
type Topology int

const (
	TopologyUndefined Topology = iota
	PointList
	LineList
	LineStrip
	TriangleList
	TriangleStrip
	LineListAdj
	LineStripAdj
	TriangleListAdj
	TriangleStripAdj
)

var topologyNames = map[Topology]string{
	TopologyUndefined: "Undefined",
	PointList:         "PointList",
	LineList:          "LineList",
	LineStrip:         "LineStrip",
	TriangleList:      "TriangleList",
	TriangleStrip:     "TriangleStrip",
	LineListAdj:       "LineListAdj",
	LineStripAdj:      "LineStripAdj",
	TriangleListAdj:   "TriangleListAdj",
	TriangleStripAdj:  "TriangleStripAdj",
}

func (t Topology) String() string {
	if n, ok := topologyNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

// VerticesPerPrimitive returns the number of vertices stream-out writes for
// each primitive of the topology. Strips are written as lists.
func (t Topology) VerticesPerPrimitive() uint64 {
	switch t {
	case PointList:
		return 1
	case LineList, LineStrip:
		return 2
	case TriangleList, TriangleStrip:
		return 3
	case LineListAdj, LineStripAdj:
		return 4
	case TriangleListAdj, TriangleStripAdj:
		return 6
	default:
		return 1
	}
}

// AsList returns the list form of a strip topology. Other topologies are
// returned unchanged.
func (t Topology) AsList() Topology {
	switch t {
	case LineStrip:
		return LineList
	case TriangleStrip:
		return TriangleList
	case LineStripAdj:
		return LineListAdj
	case TriangleStripAdj:
		return TriangleListAdj
	default:
		return t
	}
}

// IsStrip returns true if primitives of the topology share vertices.
func (t Topology) IsStrip() bool { return t.AsList() != t }

// PrimitiveCount returns the number of whole primitives formed by
// vertexCount vertices of the topology.
func (t Topology) PrimitiveCount(vertexCount uint64) uint64 {
	switch t {
	case PointList:
		return vertexCount
	case LineList:
		return vertexCount / 2
	case LineStrip:
		if vertexCount < 2 {
			return 0
		}
		return vertexCount - 1
	case TriangleList:
		return vertexCount / 3
	case TriangleStrip:
		if vertexCount < 3 {
			return 0
		}
		return vertexCount - 2
	case LineListAdj:
		return vertexCount / 4
	case LineStripAdj:
		if vertexCount < 4 {
			return 0
		}
		return vertexCount - 3
	case TriangleListAdj:
		return vertexCount / 6
	case TriangleStripAdj:
		if vertexCount < 6 {
			return 0
		}
		return (vertexCount - 4) / 2
	default:
		return 0
	}
}

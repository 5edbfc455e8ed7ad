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

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/fault"
	"github.com/google/postvs/gapis/gpu"
	"github.com/google/postvs/gapis/gpu/softgpu"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	// ErrInvalidScenario is returned for scenarios that cannot be replayed.
	ErrInvalidScenario = fault.Const("Invalid scenario")

	// scenarioEvent is the event ID of the scenario's draw.
	scenarioEvent = 1
)

// Camera is a perspective projection looking down +z.
type Camera struct {
	// FovY is the vertical field of view in degrees.
	FovY   float32 `toml:"fov_y"`
	Aspect float32 `toml:"aspect"`
	Near   float32 `toml:"near"`
	Far    float32 `toml:"far"`
}

// Scenario describes a single draw.
type Scenario struct {
	Topology string `toml:"topology"`
	// Vertices are view-space positions.
	Vertices   [][]float32 `toml:"vertices"`
	Indices    []uint32    `toml:"indices"`
	IndexWidth uint32      `toml:"index_width"`
	StripCut   bool        `toml:"strip_cut"`
	Instances  uint32      `toml:"instances"`
	// InstanceOffset translates each instance from the previous one.
	InstanceOffset []float32 `toml:"instance_offset"`
	// Amplify is the number of times a geometry shader emits each
	// primitive. Zero draws without a geometry shader.
	Amplify int    `toml:"amplify"`
	Camera  Camera `toml:"camera"`

	topology gpu.Topology
}

func defaultScenario() Scenario {
	return Scenario{
		Topology:   "TriangleList",
		IndexWidth: 4,
		Instances:  1,
		Camera:     Camera{FovY: 60, Aspect: 1, Near: 0.1, Far: 100},
	}
}

// LoadScenario reads and parses the scenario file at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Reading scenario %v", path)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Loading scenario %v", path)
	}
	return s, nil
}

// ParseScenario decodes a TOML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	s := defaultScenario()
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "Decoding scenario")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseTopology(name string) (gpu.Topology, bool) {
	for t := gpu.PointList; t <= gpu.TriangleStripAdj; t++ {
		if strings.EqualFold(t.String(), name) {
			return t, true
		}
	}
	return gpu.TopologyUndefined, false
}

func (s *Scenario) validate() error {
	var ok bool
	if s.topology, ok = parseTopology(s.Topology); !ok {
		return errors.Wrapf(ErrInvalidScenario, "unknown topology %q", s.Topology)
	}
	if len(s.Vertices) == 0 {
		return errors.Wrap(ErrInvalidScenario, "no vertices")
	}
	for i, v := range s.Vertices {
		if len(v) != 3 {
			return errors.Wrapf(ErrInvalidScenario, "vertex %d has %d components, expected 3", i, len(v))
		}
	}
	if len(s.InstanceOffset) != 0 && len(s.InstanceOffset) != 3 {
		return errors.Wrap(ErrInvalidScenario, "instance_offset must have 3 components")
	}
	switch s.IndexWidth {
	case 2:
		for _, i := range s.Indices {
			if i > math.MaxUint16 {
				return errors.Wrapf(ErrInvalidScenario, "index %d does not fit in 16 bits", i)
			}
		}
	case 4:
	default:
		return errors.Wrapf(ErrInvalidScenario, "index_width must be 2 or 4, got %d", s.IndexWidth)
	}
	if s.Amplify < 0 {
		return errors.Wrap(ErrInvalidScenario, "amplify must not be negative")
	}
	if s.Amplify > 0 && s.topology.AsList().VerticesPerPrimitive() > 3 {
		return errors.Wrap(ErrInvalidScenario, "amplify does not support adjacency topologies")
	}
	if c := s.Camera; c.Near <= 0 || c.Far <= c.Near || c.FovY <= 0 || c.Aspect <= 0 {
		return errors.Wrap(ErrInvalidScenario, "camera needs 0 < near < far, a positive fov_y and aspect")
	}
	return nil
}

// project returns the clip-space position of the view-space point p.
func (c Camera) project(p []float32) []float32 {
	ys := float32(1 / math.Tan(float64(c.FovY)*math.Pi/360))
	xs := ys / c.Aspect
	a := c.Far / (c.Far - c.Near)
	b := -c.Near * c.Far / (c.Far - c.Near)
	return []float32{p[0] * xs, p[1] * ys, p[2]*a + b, p[2]}
}

func floatBytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func (s *Scenario) indexBytes() []byte {
	out := make([]byte, int(s.IndexWidth)*len(s.Indices))
	for i, v := range s.Indices {
		if s.IndexWidth == 2 {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		}
	}
	return out
}

// Replay builds the scenario's shaders, buffers and draw on dev.
func (s *Scenario) Replay(ctx context.Context, dev *softgpu.Device) (*softgpu.Replay, error) {
	outputs := []gpu.SignatureParam{
		{SemanticName: "SV_Position", ComponentCount: 4, Position: true},
		{SemanticName: "TEXCOORD", ComponentCount: 3},
	}
	vs := gpu.NewShader(outputs, gpu.TopologyUndefined)
	offset := s.InstanceOffset
	if len(offset) == 0 {
		offset = []float32{0, 0, 0}
	}
	dev.RegisterVertexProgram(vs, func(in softgpu.VertexInput) softgpu.Vertex {
		p := make([]float32, 3)
		copy(p, in.Attributes[0])
		for i := range p {
			p[i] += offset[i] * float32(in.InstanceID)
		}
		return softgpu.Vertex{s.Camera.project(p), p}
	})

	var vertices []float32
	for _, v := range s.Vertices {
		vertices = append(vertices, v...)
	}
	vb, err := dev.CreateBufferWithData(ctx, "scenario vertices", gputypes.BufferUsageVertex, floatBytes(vertices))
	if err != nil {
		return nil, err
	}
	state := &gpu.RenderState{
		Pipeline: &gpu.PipelineState{
			VS:            vs,
			Topology:      s.topology.AsList(),
			RootSignature: dev.NewRootSignature("scenario", false),
			StripCut:      s.StripCut,
		},
		Topology: s.topology,
		VertexBuffers: []gpu.VertexBinding{{
			Buffer:   vb,
			Stride:   12,
			Format:   gputypes.VertexFormatFloat32x3,
			StepMode: gputypes.VertexStepModeVertex,
		}},
	}
	if s.Amplify > 0 {
		gs := gpu.NewShader(outputs, s.topology.AsList())
		dev.RegisterPrimitiveProgram(gs, softgpu.Amplify(s.Amplify))
		state.Pipeline.GS = gs
	}

	draw := &gpu.DrawRequest{NumIndices: uint32(len(s.Vertices)), NumInstances: s.Instances}
	if s.Instances > 1 {
		draw.Flags |= gpu.Instanced
	}
	if len(s.Indices) > 0 {
		data := s.indexBytes()
		ib, err := dev.CreateBufferWithData(ctx, "scenario indices", gputypes.BufferUsageIndex, data)
		if err != nil {
			return nil, err
		}
		format := gputypes.IndexFormatUint32
		if s.IndexWidth == 2 {
			format = gputypes.IndexFormatUint16
		}
		state.IndexBuffer = gpu.IndexBinding{Buffer: ib, Format: format}
		draw.Flags |= gpu.Indexed
		draw.NumIndices = uint32(len(s.Indices))
		draw.IndexWidth = s.IndexWidth
		draw.IndexData = data
	}
	return softgpu.NewReplay(dev, softgpu.Event{ID: scenarioEvent, Draw: draw, State: state}), nil
}

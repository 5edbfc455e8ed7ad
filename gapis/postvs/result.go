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

	"github.com/google/postvs/gapis/gpu"
)

// InstanceData locates the output of one instance of a draw whose output
// size varies per instance.
type InstanceData struct {
	NumVerts   uint32
	ByteOffset uint64
}

// StageOutput is the captured output of one pipeline stage.
type StageOutput struct {
	// Buffer holds the captured vertices. It is owned by the result and
	// unaffected by pool growth.
	Buffer gpu.Buffer
	Stride uint32
	// InstanceStride is the byte size of each instance's output, or 0 when
	// the draw is not instanced.
	InstanceStride uint64
	NumVerts       uint32
	// Instances is populated when output size varies per instance.
	Instances []InstanceData
	Near, Far float32
	Topology  gpu.Topology
	// UseIndices is true when the vertices are addressed through indices.
	UseIndices bool
	// IndexBuffer holds the rewritten index stream of an indexed draw.
	IndexBuffer gpu.Buffer
	IndexWidth  uint32
	HasPosition bool
}

// StageData holds either a captured output or the error that prevented it.
// The zero value is a stage with no outputs to capture.
type StageData struct {
	out *StageOutput
	err *CaptureError
}

func succeeded(out *StageOutput) StageData { return StageData{out: out} }
func failed(err *CaptureError) StageData  { return StageData{err: err} }

// Output returns the captured output, or nil.
func (s StageData) Output() *StageOutput { return s.out }

// Err returns the capture error, or nil.
func (s StageData) Err() *CaptureError { return s.err }

// Status returns the user facing description of a failed stage, or the
// empty string.
func (s StageData) Status() string {
	if s.err == nil {
		return ""
	}
	return s.err.Status
}

// Empty returns true if the stage has neither output nor error.
func (s StageData) Empty() bool { return s.out == nil && s.err == nil }

// CaptureResult is the post-transform output of one draw event.
type CaptureResult struct {
	EventID uint32
	// Topology is the input topology of the draw.
	Topology gpu.Topology
	VS       StageData
	GS       StageData
}

// Stage returns the data of the given stage.
func (r *CaptureResult) Stage(s Stage) StageData {
	if s == GeometryStage {
		return r.GS
	}
	return r.VS
}

func (r *CaptureResult) release(ctx context.Context, device gpu.Device) {
	for _, s := range []StageData{r.VS, r.GS} {
		if out := s.Output(); out != nil {
			device.Release(out.Buffer)
			if out.IndexBuffer != nil {
				device.Release(out.IndexBuffer)
			}
		}
	}
}

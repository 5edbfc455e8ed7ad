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
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu"
	"github.com/pkg/errors"
)

// Declaration is the stream-out layout of a stage's outputs.
type Declaration struct {
	Entries []gpu.StreamOutEntry
	Stride  uint32
	// PositionIndex is the index of the position output in the stage's
	// signature, or -1.
	PositionIndex int
}

// HasPosition returns true if the first entry is a four component position.
func (d Declaration) HasPosition() bool { return d.PositionIndex >= 0 }

// BuildDeclaration lays out outputs for stream-out, keeping only those
// emitted to stream. The position output is widened to four components and
// moved first, otherwise preserving order. The stride is never less than 4.
func BuildDeclaration(ctx context.Context, outputs []gpu.SignatureParam, stream uint32) Declaration {
	d := Declaration{PositionIndex: -1}
	pos := -1
	for i, o := range outputs {
		if o.Stream != stream {
			continue
		}
		entry := gpu.StreamOutEntry{
			SemanticName:   o.SemanticName,
			SemanticIndex:  o.SemanticIndex,
			ComponentCount: o.ComponentCount & 0xff,
		}
		if o.Position {
			pos = len(d.Entries)
			d.PositionIndex = i
			entry.ComponentCount = 4
		}
		d.Stride += entry.ComponentCount * 4
		d.Entries = append(d.Entries, entry)
	}
	if d.Stride == 0 {
		log.W(ctx, "Didn't get valid stride! Setting to 4 bytes")
		d.Stride = 4
	}
	if pos > 0 {
		p := d.Entries[pos]
		copy(d.Entries[1:pos+1], d.Entries[:pos])
		d.Entries[0] = p
	}
	if config.DebugStreamOut {
		log.D(ctx, "Stream-out declaration %+v stride %d", d.Entries, d.Stride)
	}
	return d
}

// rasterizedStream returns the geometry stream captured for p: the
// rasterized stream, or stream 0 when none is rasterized.
func rasterizedStream(p *gpu.PipelineState) uint32 {
	if p.RasterizedStream < 0 {
		return 0
	}
	return uint32(p.RasterizedStream)
}

// streamOutSignature returns a root signature allowing stream output for
// p. created is true when a new signature was made that the caller must
// release.
func (s *Session) streamOutSignature(ctx context.Context, p *gpu.PipelineState) (sig gpu.RootSignature, created bool, err error) {
	if p.RootSignature != nil && p.RootSignature.AllowsStreamOut() {
		return p.RootSignature, false, nil
	}
	sig, err = s.device.CreateStreamOutRootSignature(ctx, p.RootSignature)
	if err != nil {
		return nil, false, err
	}
	return sig, true, nil
}

// upload copies data into a new upload heap buffer owned by the caller.
func (s *Session) upload(ctx context.Context, label string, usage gputypes.BufferUsage, data []byte) (gpu.Buffer, error) {
	buf, err := s.device.CreateBuffer(ctx, gpu.BufferDesc{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopyDst,
		Heap:  gpu.HeapUpload,
	})
	if err != nil {
		return nil, err
	}
	if err := s.device.Write(ctx, buf, 0, data); err != nil {
		s.device.Release(buf)
		return nil, errors.Wrapf(err, "Writing %v", label)
	}
	return buf, nil
}

// submit closes, submits and syncs list.
func (s *Session) submit(ctx context.Context, list gpu.CommandList) error {
	if err := list.Close(); err != nil {
		return errors.Wrap(err, "Closing command list")
	}
	if err := s.device.Submit(ctx, list); err != nil {
		return errors.Wrap(err, "Submitting command list")
	}
	return s.device.Sync(ctx)
}

// bind records the state of a replayed draw with the patched pipeline in
// place of the original.
func bind(list gpu.CommandList, state *gpu.RenderState, pipe gpu.Pipeline, sig gpu.RootSignature) {
	list.ApplyState(state)
	list.SetPipeline(pipe)
	list.SetRootSignature(sig)
}

// draw records d with instances instances.
func draw(list gpu.CommandList, d *gpu.DrawRequest, instances uint32) {
	if d.Is(gpu.Indexed) {
		list.DrawIndexed(d.NumIndices, instances, d.IndexOffset, d.BaseVertex, d.InstanceOffset)
	} else {
		list.Draw(d.NumIndices, instances, d.VertexOffset, d.InstanceOffset)
	}
}

func bufferLabel(kind string, eventID uint32) string {
	return fmt.Sprintf("PostVS %v for %d", kind, eventID)
}

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

// The postvs command captures the post-transform vertices of a draw
// described by a scenario file, replayed on the software device.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/google/postvs/core/app"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
	"github.com/google/postvs/gapis/gpu/softgpu"
	"github.com/google/postvs/gapis/postvs"
)

var (
	settingsPath = flag.String("config", "", "TOML file overriding the capture settings")
	stageName    = flag.String("stage", "vs", "the stage to print: vs or gs")
	instance     = flag.Uint("instance", 0, "the instance to print")
	dump         = flag.Bool("dump", false, "print the captured vertices")
	watch        = flag.Bool("watch", false, "capture again whenever the scenario or settings change")
)

func main() {
	app.ShortHelp = "postvs captures the post-transform vertices of a scenario draw."
	app.ShortUsage = "<scenario.toml>"
	app.Run(run)
}

func run(ctx context.Context) error {
	if flag.NArg() != 1 {
		app.Usagef("Expected one scenario file, got %d arguments", flag.NArg())
	}
	var stage postvs.Stage
	switch strings.ToLower(*stageName) {
	case "vs":
		stage = postvs.VertexStage
	case "gs":
		stage = postvs.GeometryStage
	default:
		app.Usagef("Unknown stage %q", *stageName)
	}
	path := flag.Arg(0)
	if !*watch {
		return capture(ctx, os.Stdout, path, stage)
	}

	files := []string{path}
	if *settingsPath != "" {
		files = append(files, *settingsPath)
	}
	return watchFiles(ctx, files, func() {
		if err := capture(ctx, os.Stdout, path, stage); err != nil {
			log.W(ctx, "Capture of %v failed: %v", path, err)
		}
	})
}

func loadSettings() (config.Settings, error) {
	if *settingsPath == "" {
		return config.Default(), nil
	}
	return config.Load(*settingsPath)
}

// capture replays the scenario at path and prints the mesh of stage.
func capture(ctx context.Context, w io.Writer, path string, stage postvs.Stage) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	sc, err := LoadScenario(path)
	if err != nil {
		return err
	}
	dev := softgpu.New()
	replay, err := sc.Replay(ctx, dev)
	if err != nil {
		return log.Errf(ctx, err, "Building scenario %v", path)
	}
	pool, err := postvs.NewPool(dev, settings)
	if err != nil {
		return log.Errf(ctx, err, "Creating stream-out pool")
	}
	session := postvs.NewSession(replay, pool)
	defer session.ClearCache(ctx)

	session.CaptureOutputs(ctx, scenarioEvent)
	view := session.CapturedMesh(ctx, scenarioEvent, uint32(*instance), stage)
	printView(w, view)
	if *dump && view.VertexBuffer != nil {
		data, err := dev.Map(ctx, view.VertexBuffer, 0, view.VertexBuffer.Size())
		if err != nil {
			return log.Err(ctx, err, "Reading captured vertices")
		}
		defer dev.Unmap(view.VertexBuffer)
		dumpVertices(w, view, data)
	}
	return nil
}

func printView(w io.Writer, v postvs.MeshView) {
	fmt.Fprintf(w, "Event %d %v\n", v.EventID, v.Stage)
	if v.Status != "" {
		fmt.Fprintf(w, "  status:    %v\n", v.Status)
	}
	if v.VertexBuffer == nil {
		return
	}
	fmt.Fprintf(w, "  vertices:  %d\n", v.NumIndices)
	fmt.Fprintf(w, "  stride:    %d\n", v.VertexByteStride)
	fmt.Fprintf(w, "  offset:    %d\n", v.VertexByteOffset)
	fmt.Fprintf(w, "  topology:  %v\n", v.Topology)
	fmt.Fprintf(w, "  format:    %v\n", v.Format)
	if v.IndexByteStride != 0 {
		fmt.Fprintf(w, "  indices:   %d bytes each\n", v.IndexByteStride)
	}
	if v.Unproject {
		fmt.Fprintf(w, "  near/far:  %g / %g\n", v.Near, v.Far)
	}
}

func dumpVertices(w io.Writer, v postvs.MeshView, data []byte) {
	stride := uint64(v.VertexByteStride)
	for i := uint64(0); ; i++ {
		start := v.VertexByteOffset + i*stride
		if stride == 0 || start+stride > uint64(len(data)) {
			return
		}
		if v.IndexBuffer == nil && i >= uint64(v.NumIndices) {
			return
		}
		fmt.Fprintf(w, "  %4d:", i)
		for c := uint64(0); c < stride/4; c++ {
			bits := binary.LittleEndian.Uint32(data[start+c*4:])
			fmt.Fprintf(w, " %8.3f", math.Float32frombits(bits))
		}
		fmt.Fprintln(w)
	}
}

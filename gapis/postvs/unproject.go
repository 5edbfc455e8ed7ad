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
	"encoding/binary"
	"math"
)

type vec4 struct{ x, y, z, w float32 }

func readVec4(data []byte) vec4 {
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	return vec4{f(0), f(1), f(2), f(3)}
}

// deriveNearFar solves the near and far planes of a standard perspective
// projection from two clip-space positions. Post-projection z is linear in
// w: z = w*m + c, with m = F/(F-N) and c = -F*N/(F-N), so N = -c/m and
// F = c/(1-m).
func deriveNearFar(pos, pos0 vec4) (near, far float32, ok bool) {
	if pos.w == 0 || abs(pos.w-pos0.w) <= 0.01 || abs(pos.z-pos0.z) <= 0.01 {
		return 0, 0, false
	}
	m := (pos.z - pos0.z) / (pos.w - pos0.w)
	c := pos.z - pos.w*m
	if m == 1 || c == 0 {
		return 0, 0, false
	}
	if -c/m <= 0.000001 {
		return 0, 0, false
	}
	return -c / m, c / (1 - m), true
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// RecoverProjection scans count vertices of stride bytes, whose first
// attribute is a four component clip-space position, for a pair that
// reveals the near and far planes. If every position shares vertex 0's z and
// w, and that z is positive and less than w, the projection is taken to be
// reversed depth with an infinite far plane. Otherwise the defaults are
// returned.
func RecoverProjection(data []byte, stride uint32, count uint64, defNear, defFar float32) (near, far float32) {
	if stride < 16 || uint64(len(data)) < 16 {
		return defNear, defFar
	}
	if limit := uint64(len(data)-16)/uint64(stride) + 1; count > limit {
		count = limit
	}
	pos0 := readVec4(data)
	for i := uint64(1); i < count; i++ {
		if n, f, ok := deriveNearFar(readVec4(data[i*uint64(stride):]), pos0); ok {
			return n, f
		}
	}
	if pos0.z > 0 && pos0.w > pos0.z {
		return pos0.z, float32(math.Inf(1))
	}
	return defNear, defFar
}

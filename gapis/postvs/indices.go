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

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// IndexRemap is the set of unique vertex indices a draw references, and the
// mapping from each to its position in the set.
type IndexRemap struct {
	// Indices is sorted ascending with no duplicates.
	Indices []uint32
}

// Remap returns the position of original in the unique set.
func (r *IndexRemap) Remap(original uint32) (uint32, bool) {
	i, found := slices.BinarySearch(r.Indices, original)
	return uint32(i), found
}

// Len returns the number of unique indices.
func (r *IndexRemap) Len() int { return len(r.Indices) }

// OutputSize returns the worst case stream-out size of the unique vertices:
// a four component float per vertex.
func (r *IndexRemap) OutputSize() uint64 { return uint64(len(r.Indices)) * 4 * 4 }

// Bytes returns the unique indices as little-endian uint32s.
func (r *IndexRemap) Bytes() []byte {
	out := make([]byte, 4*len(r.Indices))
	for i, v := range r.Indices {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// insertUnique adds v to the sorted set, keeping it sorted.
func insertUnique[T constraints.Ordered](set []T, v T) []T {
	i, found := slices.BinarySearch(set, v)
	if found {
		return set
	}
	return slices.Insert(set, i, v)
}

// stripCutValue returns the primitive restart sentinel for an index width.
func stripCutValue(width uint32) uint32 {
	if width == 2 {
		return math.MaxUint16
	}
	return math.MaxUint32
}

// CompactIndices builds the unique index set of the first count indices of
// data, and returns it along with a copy of the readable indices rewritten
// to positions in the set. If data holds fewer than count indices, the
// missing reads fetch index 0 and so 0 is added to the set. When stripCut
// is true, restart sentinels are left unchanged in the rewritten copy.
func CompactIndices(data []byte, width, count uint32, stripCut bool) (*IndexRemap, []byte, error) {
	switch width {
	case 2:
		return compact[uint16](data, width, count, stripCut, binary.LittleEndian.Uint16, binary.LittleEndian.PutUint16)
	case 4:
		return compact[uint32](data, width, count, stripCut, binary.LittleEndian.Uint32, binary.LittleEndian.PutUint32)
	default:
		return nil, nil, errors.Wrapf(ErrIndexWidth, "%d bytes", width)
	}
}

func compact[T constraints.Unsigned](
	data []byte, width, count uint32, stripCut bool,
	get func([]byte) T, put func([]byte, T)) (*IndexRemap, []byte, error) {

	n := uint32(len(data)) / width
	if n > count {
		n = count
	}
	remap := &IndexRemap{}
	for i := uint32(0); i < n; i++ {
		remap.Indices = insertUnique(remap.Indices, uint32(get(data[i*width:])))
	}
	if n < count && (len(remap.Indices) == 0 || remap.Indices[0] != 0) {
		remap.Indices = slices.Insert(remap.Indices, 0, 0)
	}

	sentinel := stripCutValue(width)
	out := slices.Clone(data[:n*width])
	for i := uint32(0); i < n; i++ {
		v := uint32(get(out[i*width:]))
		if stripCut && v == sentinel {
			continue
		}
		pos, _ := remap.Remap(v)
		put(out[i*width:], T(pos))
	}
	return remap, out, nil
}

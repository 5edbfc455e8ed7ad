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
	"math"
	"math/bits"

	"github.com/google/postvs/gapis/config"
)

const (
	// growthDoublingLimit is the capacity up to which growth doubles.
	growthDoublingLimit = 0x10000000
	// growthAlignment is the step capacity grows in above the doubling limit.
	growthAlignment = 0x1000000
)

// Grow returns the stream-out capacity to allocate so that required bytes
// fit, given current bytes are allocated. Growth starts from initial when
// nothing is allocated and doubles up to 256MiB, beyond which required is
// rounded up to a multiple of 16MiB. Grow never returns less than required.
func Grow(current, required, initial uint64) uint64 {
	if required <= current {
		return current
	}
	size := current
	if size == 0 {
		size = initial
	}
	if size == 0 {
		size = 1
	}
	for size < required && size < growthDoublingLimit {
		size *= 2
	}
	if size < required {
		size = alignUp(required, growthAlignment)
	}
	return size
}

// GrowFor is Grow with the initial capacity of settings.
func GrowFor(s config.Settings, current, required uint64) uint64 {
	return Grow(current, required, s.InitialCapacity)
}

// alignUp rounds v up to a multiple of the power of two a, saturating at
// the largest representable value.
func alignUp(v, a uint64) uint64 {
	if v > math.MaxUint64-(a-1) {
		return math.MaxUint64
	}
	return (v + a - 1) &^ (a - 1)
}

// outputBytes returns header plus the product of factors, saturating at the
// largest representable value.
func outputBytes(header uint64, factors ...uint64) uint64 {
	product := uint64(1)
	for _, f := range factors {
		hi, lo := bits.Mul64(product, f)
		if hi != 0 {
			return math.MaxUint64
		}
		product = lo
	}
	sum, carry := bits.Add64(product, header, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

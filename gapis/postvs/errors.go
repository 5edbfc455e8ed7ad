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
	"fmt"

	"github.com/google/postvs/core/fault"
)

const (
	// ErrCapacityRefused is returned when a stream-out capacity is too large
	// to attempt an allocation.
	ErrCapacityRefused = fault.Const("Stream-out capacity refused")
	// ErrIndexWidth is returned for index data that is neither 16 nor 32 bit.
	ErrIndexWidth = fault.Const("Unsupported index width")
)

// ErrorKind classifies the failure of a capture stage.
type ErrorKind int

const (
	// ConfigurationError is a draw that cannot be captured as bound. No GPU
	// work was attempted.
	ConfigurationError ErrorKind = iota + 1
	// ResourceExhausted is a failed or refused allocation.
	ResourceExhausted
	// DeviceError is a failure creating GPU objects or reading back results.
	DeviceError
	// EmptyResult is GPU work that succeeded but wrote no output.
	EmptyResult
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "ConfigurationError"
	case ResourceExhausted:
		return "ResourceExhausted"
	case DeviceError:
		return "DeviceError"
	case EmptyResult:
		return "EmptyResult"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// CaptureError is the failure of one capture stage. Status is the text shown
// to the user.
type CaptureError struct {
	Kind   ErrorKind
	Status string
	Cause  error
}

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return e.Status + ": " + e.Cause.Error()
	}
	return e.Status
}

// Unwrap returns the underlying error, if any.
func (e *CaptureError) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, cause error, status string, args ...interface{}) *CaptureError {
	return &CaptureError{Kind: kind, Status: fmt.Sprintf(status, args...), Cause: cause}
}

const (
	statusNoPipeline         = "No pipeline bound"
	statusNoGraphicsPipeline = "No graphics pipeline bound"
	statusNoVertexShader     = "No vertex shader in pipeline"
	statusNoIndices          = "Empty drawcall (0 indices/vertices)"
	statusNoInstances        = "Empty drawcall (0 instances)"
	statusNoGeometryStage    = "No geometry and no tessellation shader bound."
	statusVertexStageFailed  = "No geometry/tessellation output fetched due to error processing vertex stage."
	statusNoVertexData       = "Vertex output data from GPU contained no vertex data"
	statusNoGeometryData     = "No detectable output generated by geometry/tessellation shaders"
	statusVertexReadback     = "Couldn't read back vertex output data from GPU"
	statusGeometryReadback   = "Couldn't read back geometry/tessellation output data from GPU"
	statusVertexOOM          = "Vertex output generated %d bytes of data which ran out of memory"
	statusGeometryOOM        = "Geometry/tessellation output generated %d bytes of data which ran out of memory"
	statusRootSignature      = "Couldn't enable stream-out in root signature: %v"
	statusPipeline           = "Couldn't create patched graphics pipeline: %v"
	statusStatistics         = "Couldn't get stream-out statistics: %v"
	statusSubmit             = "Couldn't execute stream-out commands: %v"
	statusIndexData          = "Couldn't read index data: %v"
	statusReplay             = "Couldn't replay to event %d: %v"
	statusResizeLimit        = "Geometry/tessellation output did not fit after %d resizes"
)

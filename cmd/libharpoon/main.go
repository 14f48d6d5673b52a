//go:build cgo

// Command libharpoon builds the c-shared form of the engine:
//
//	go build -buildmode=c-shared -o libharpoon.so ./cmd/libharpoon
//
// Engines cross the boundary as opaque handles. Every string returned to the
// caller is allocated with malloc and must be released with
// harpoon_free_string. Cycle results are JSON envelopes; failures come back
// as {"error": "..."}.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"encoding/json"
	"errors"
	"runtime/cgo"
	"unsafe"

	"github.com/JakeFAU/harpoon/pkg/harpoon"
)

func main() {}

// optionalInt maps the C convention of "negative means unset" onto a pointer.
func optionalInt(v C.longlong) *int {
	if v < 0 {
		return nil
	}
	n := int(v)
	return &n
}

func engineFrom(h C.uintptr_t) (*harpoon.Engine, error) {
	if h == 0 {
		return nil, errors.New("harpoon: nil engine handle")
	}
	eng, ok := cgo.Handle(h).Value().(*harpoon.Engine)
	if !ok {
		return nil, errors.New("harpoon: invalid engine handle")
	}
	return eng, nil
}

func errorEnvelope(err error) *C.char {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return C.CString(string(payload))
}

// harpoon_engine_new builds an engine. Negative arguments select defaults.
// On failure it returns 0 and, when errOut is non-nil, stores an error string
// the caller must free.
//
//export harpoon_engine_new
func harpoon_engine_new(maxBatch, numThreads C.longlong, errOut **C.char) C.uintptr_t {
	eng, err := harpoon.New(harpoon.Options{
		MaxBatch:   optionalInt(maxBatch),
		NumThreads: optionalInt(numThreads),
	})
	if err != nil {
		if errOut != nil {
			*errOut = C.CString(err.Error())
		}
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(eng))
}

//export harpoon_engine_free
func harpoon_engine_free(h C.uintptr_t) {
	if h == 0 {
		return
	}
	handle := cgo.Handle(h)
	if eng, ok := handle.Value().(*harpoon.Engine); ok {
		eng.Close()
	}
	handle.Delete()
}

// harpoon_envelope_cycle runs one cycle over a JSON fragment array. A negative
// maxIterations applies the default cap.
//
//export harpoon_envelope_cycle
func harpoon_envelope_cycle(h C.uintptr_t, fragmentsJSON *C.char, threshold C.double, maxIterations C.longlong) *C.char {
	eng, err := engineFrom(h)
	if err != nil {
		return errorEnvelope(err)
	}
	if fragmentsJSON == nil {
		return errorEnvelope(errors.New("harpoon: nil fragments"))
	}
	out, err := eng.EnvelopeCycle([]byte(C.GoString(fragmentsJSON)), float64(threshold), optionalInt(maxIterations))
	if err != nil {
		return errorEnvelope(err)
	}
	return C.CString(string(out))
}

//export harpoon_fragment_hash
func harpoon_fragment_hash(body *C.char) *C.char {
	return C.CString(harpoon.Hash(C.GoString(body)))
}

//export harpoon_fingerprint
func harpoon_fingerprint(body *C.char) *C.char {
	return C.CString(harpoon.Fingerprint(C.GoString(body)))
}

// harpoon_thread_count returns the engine's worker count, or -1 for an
// invalid handle.
//
//export harpoon_thread_count
func harpoon_thread_count(h C.uintptr_t) C.longlong {
	eng, err := engineFrom(h)
	if err != nil {
		return -1
	}
	return C.longlong(eng.ThreadCount())
}

//export harpoon_free_string
func harpoon_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

//go:build js && wasm

// Command harpoon-wasm builds the WebAssembly form of the engine:
//
//	GOOS=js GOARCH=wasm go build -o harpoon.wasm ./cmd/harpoon-wasm
//
// It registers a global "harpoon" object:
//
//	const eng = harpoon.newEngine(maxBatch, numThreads) // both optional
//	const json = eng.envelopeCycle(fragmentsJSON, 0.7, maxIterations)
//	eng.fragmentHash(body); eng.fingerprint(body); eng.threadCount()
//
// Failures are returned as JavaScript Error objects; check with instanceof Error.
package main

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/JakeFAU/harpoon/pkg/harpoon"
)

func main() {
	js.Global().Set("harpoon", js.ValueOf(map[string]any{
		"fragmentHash": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return harpoon.Hash(stringArg(args, 0))
		}),
		"fingerprint": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return harpoon.Fingerprint(stringArg(args, 0))
		}),
		"newEngine": js.FuncOf(newEngine),
	}))
	select {}
}

// optionalInt reads a non-negative integer argument; undefined and null
// leave it unset.
func optionalInt(args []js.Value, i int, name string) (*int, error) {
	if i >= len(args) || args[i].IsUndefined() || args[i].IsNull() {
		return nil, nil
	}
	if args[i].Type() != js.TypeNumber {
		return nil, fmt.Errorf("%s: expected a number", name)
	}
	f := args[i].Float()
	n := int(f)
	if float64(n) != f || n < 0 {
		return nil, fmt.Errorf("%s: expected an unsigned integer", name)
	}
	return &n, nil
}

func stringArg(args []js.Value, i int) string {
	if i >= len(args) || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

// jsError wraps err in a JavaScript Error. Panicking inside a js.Func would
// terminate the Go runtime, so failures are returned, not thrown.
func jsError(err error) any {
	return js.Global().Get("Error").New(err.Error())
}

func newEngine(_ js.Value, args []js.Value) any {
	maxBatch, err := optionalInt(args, 0, "max_batch")
	if err != nil {
		return jsError(err)
	}
	numThreads, err := optionalInt(args, 1, "num_threads")
	if err != nil {
		return jsError(err)
	}
	eng, err := harpoon.New(harpoon.Options{MaxBatch: maxBatch, NumThreads: numThreads})
	if err != nil {
		return jsError(err)
	}

	obj := map[string]any{
		"envelopeCycle": js.FuncOf(func(_ js.Value, args []js.Value) any {
			if len(args) < 2 || args[0].Type() != js.TypeString || args[1].Type() != js.TypeNumber {
				return jsError(errors.New("envelopeCycle(fragmentsJSON, threshold, maxIterations?)"))
			}
			limit, err := optionalInt(args, 2, "max_iterations")
			if err != nil {
				return jsError(err)
			}
			out, err := eng.EnvelopeCycle([]byte(args[0].String()), args[1].Float(), limit)
			if err != nil {
				return jsError(err)
			}
			return string(out)
		}),
		"fragmentHash": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return eng.FragmentHash(stringArg(args, 0))
		}),
		"fingerprint": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return eng.Fingerprint(stringArg(args, 0))
		}),
		"threadCount": js.FuncOf(func(js.Value, []js.Value) any {
			return eng.ThreadCount()
		}),
	}
	return js.ValueOf(obj)
}

//go:build (js && wasm) || wasip1

package scheduler

const platformThreads = false

// Package progress streams cycle activity to observers without slowing the
// cycle down. Emitters hand events to a Hub, which batches them on a
// background goroutine and fans each batch out to pluggable sinks such as
// structured logs or Prometheus collectors.
package progress

// Package metrics exports resource lifecycle events as Prometheus metrics.
//
// A Collector observes the resource registry of one environment:
//
//	col, _ := metrics.NewCollector()
//	r := rados.New(lib, rados.WithObserver(col))
//	http.Handle("/metrics", col.Handler())
//
// Exported series, all labelled by resource kind:
//
//	rados_resources_live                gauge
//	rados_resources_created_total       counter
//	rados_resources_released_total      counter
//	rados_resource_release_failures_total counter
//	rados_resources_collected_total     counter
//
// A steadily growing collected counter means handles are leaking until the
// garbage collector finds them.
package metrics

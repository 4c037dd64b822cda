// Package system reports process-level runtime stats.
package system

import (
	"log/slog"
	"runtime"
)

// LogMemoryUsage logs the process heap footprint. Called after loading the
// vector index so oversized collections show up in the logs.
func LogMemoryUsage(tag string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	slog.Debug("memory usage",
		"tag", tag,
		"alloc_mb", bToMb(m.Alloc),
		"sys_mb", bToMb(m.Sys),
		"num_gc", m.NumGC,
	)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanDuration tracks full directory walks by outcome.
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidshelf_scan_duration_seconds",
		Help:    "Time taken to walk the video directory",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"result"})

	// ScanFiles is the number of records returned by the most recent scan.
	ScanFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidshelf_scan_files",
		Help: "Video files returned by the last successful scan",
	})

	StreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshelf_stream_requests_total",
		Help: "Stream requests by response kind",
	}, []string{"kind"})

	StreamBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidshelf_stream_bytes_total",
		Help: "Bytes written to streaming clients",
	})

	FileOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshelf_file_operations_total",
		Help: "File management operations by type and result",
	}, []string{"op", "result"})

	ThumbnailRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshelf_thumbnail_requests_total",
		Help: "Thumbnail lookups by source (memory, disk, generated, error)",
	}, []string{"source"})
)

// ObserveScan records a scan outcome and, on success, the file count.
func ObserveScan(success bool, files int, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
		ScanFiles.Set(float64(files))
	}
	ScanDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncStream records a stream request. kind is "full", "partial" or "error".
func IncStream(kind string) {
	StreamRequests.WithLabelValues(kind).Inc()
}

func AddStreamBytes(n int64) {
	if n > 0 {
		StreamBytes.Add(float64(n))
	}
}

func IncFileOperation(op string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	FileOperations.WithLabelValues(op, result).Inc()
}

func IncThumbnail(source string) {
	ThumbnailRequests.WithLabelValues(source).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubcat_http_requests_total",
		Help: "Total number of HTTP requests to the catalog API",
	}, []string{"method", "path", "status"})

	HttpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pubcat_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubcat_grpc_requests_total",
		Help: "Total number of gRPC calls",
	}, []string{"method", "code"})

	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubcat_store_operations_total",
		Help: "Catalog store operations by kind and outcome",
	}, []string{"op", "status"})

	SearchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pubcat_search_relaxed_total",
		Help: "Searches retried with exact filters relaxed to contains",
	})
)

// Ingest collectors live in their own registry so a batch run can push them
// without the process-wide HTTP metrics.
var (
	IngestRegistry = prometheus.NewRegistry()

	ProcessedFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubcat_ingest_processed_files_total",
		Help: "Total number of processed source files",
	}, []string{"container", "status"})

	ProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubcat_ingest_file_processing_duration_seconds",
		Help:    "Time spent processing a single source file",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	IngestRegistry.MustRegister(ProcessedFiles, ProcessingDuration)
}

// PushIngest sends the ingest registry to a pushgateway, grouped by container.
func PushIngest(url, container string) error {
	if url == "" {
		return nil
	}
	return push.New(url, "pubcat_bulker").Gatherer(IngestRegistry).Grouping("container", container).Push()
}

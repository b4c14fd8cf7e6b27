package metrics

// HTTPRecorder is the subset of HTTPMetrics used by request middleware, so
// handlers can be tested without a registry.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration float64, size int64)
	RecordAuthOperation(authType, status string)
	RecordRateLimited(path string)
}

var _ HTTPRecorder = (*HTTPMetrics)(nil)

// NoopHTTPRecorder discards all observations.
type NoopHTTPRecorder struct{}

// RecordHTTPRequest implements HTTPRecorder
func (NoopHTTPRecorder) RecordHTTPRequest(string, string, int, float64, int64) {}

// RecordAuthOperation implements HTTPRecorder
func (NoopHTTPRecorder) RecordAuthOperation(string, string) {}

// RecordRateLimited implements HTTPRecorder
func (NoopHTTPRecorder) RecordRateLimited(string) {}

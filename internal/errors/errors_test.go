package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("row %s missing", "abc").
		Component("datastore").
		Category(CategoryNotFound).
		ResourceContext("article", "abc").
		Priority("bogus").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.True(t, IsNotFound(ee))
	assert.Equal(t, PriorityMedium, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "article", ctx["resource_kind"])
	assert.Equal(t, "abc", ctx["resource_id"])

	// Returned context is a copy
	ctx["resource_id"] = "changed"
	assert.Equal(t, "abc", ee.GetContext()["resource_id"])
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategoryDatabase).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, IsCategory(ee, CategoryDatabase))
	assert.False(t, IsCategory(sentinel, CategoryDatabase))
}

func TestReporterReceivesErrorsWhenActive(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	_ = New(NewStd("connection refused")).Category(CategoryDatabase).Build()

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	require.Len(t, reporter.reported, 1)
	assert.Equal(t, CategoryDatabase, reporter.reported[0].Category)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"not found message", NewStd("user not found"), "", CategoryNotFound},
		{"timeout message", NewStd("i/o timeout"), "", CategoryTimeout},
		{"invalid message", NewStd("invalid force flag"), "", CategoryValidation},
		{"datastore fallback", NewStd("disk I/O error"), "datastore", CategoryDatabase},
		{"generic", NewStd("boom"), "api", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestShouldReportSkipsExpectedConditions(t *testing.T) {
	assert.False(t, shouldReport(CategoryConflict))
	assert.False(t, shouldReport(CategoryNotFound))
	assert.False(t, shouldReport(CategoryAuthentication))
	assert.True(t, shouldReport(CategoryDatabase))
	assert.True(t, shouldReport(CategoryLockSweep))
}

func TestScrubMessageForPrivacy(t *testing.T) {
	scrubbed := scrubMessageForPrivacy("call https://idp.example.com/token?code=abc failed for jane@example.com with Bearer xyz123")

	assert.Contains(t, scrubbed, "https://idp.example.com/token?[REDACTED]")
	assert.Contains(t, scrubbed, "[EMAIL_REDACTED]")
	assert.False(t, strings.Contains(scrubbed, "xyz123"))
}

func TestLookupComponentPrefersLongestPattern(t *testing.T) {
	assert.Equal(t, "auth", lookupComponent("github.com/tphakala/quotedesk/internal/api/auth.(*Resolver).Resolve"))
	assert.Equal(t, "api", lookupComponent("github.com/tphakala/quotedesk/internal/api/v2.(*Controller).AcquireLock"))
	assert.Equal(t, "locks", lookupComponent("github.com/tphakala/quotedesk/internal/lock.(*Service).Acquire"))
}

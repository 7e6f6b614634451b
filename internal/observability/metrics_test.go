package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("testprov", "503"))
	RecordUpstream("testprov", 503, 250*time.Millisecond)
	RecordUpstream("testprov", 503, 10*time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(UpstreamRequests.WithLabelValues("testprov", "503")))
}

func TestRecordJob(t *testing.T) {
	okBefore := testutil.ToFloat64(JobRuns.WithLabelValues("test_job", "success"))
	errBefore := testutil.ToFloat64(JobRuns.WithLabelValues("test_job", "error"))

	RecordJob("test_job", nil)
	RecordJob("test_job", errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(JobRuns.WithLabelValues("test_job", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(JobRuns.WithLabelValues("test_job", "error")))
}

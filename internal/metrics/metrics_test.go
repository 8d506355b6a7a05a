package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStorageOperation(t *testing.T) {
	before := testutil.ToFloat64(storageOperations.WithLabelValues("env", "set", "error"))
	RecordStorageOperation("env", "set", errors.New("boom"))
	after := testutil.ToFloat64(storageOperations.WithLabelValues("env", "set", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordAuthorization(t *testing.T) {
	before := testutil.ToFloat64(authorizationDecisions.WithLabelValues("owner_or_deployer", "denied"))
	RecordAuthorization("owner_or_deployer", false)
	assert.Equal(t, before+1, testutil.ToFloat64(authorizationDecisions.WithLabelValues("owner_or_deployer", "denied")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordHTTPRequest(http.MethodGet, "/values/{key}", http.StatusOK, 10*time.Millisecond)
	RecordQuotaRejection("world", "total")
	RecordPermissionFetch("ok", 0)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	for _, name := range []string{
		"worldstore_http_requests_total",
		"worldstore_quota_rejections_total",
		"worldstore_permissions_fetch_duration_seconds",
	} {
		assert.Truef(t, strings.Contains(body, name), "metrics output missing %s", name)
	}
}

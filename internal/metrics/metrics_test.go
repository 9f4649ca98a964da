package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(DecisionsTotal.WithLabelValues("allow", "grant"))
	RecordDecision(true, "grant", false, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(DecisionsTotal.WithLabelValues("allow", "grant")))

	before = testutil.ToFloat64(DecisionsTotal.WithLabelValues("deny", "no_grant"))
	RecordDecision(false, "no_grant", true, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(DecisionsTotal.WithLabelValues("deny", "no_grant")))
}

func TestRecordEnforcement(t *testing.T) {
	before := testutil.ToFloat64(EnforcementTotal.WithLabelValues("exempt", "allow"))
	RecordEnforcement("exempt", "allow")
	assert.Equal(t, before+1, testutil.ToFloat64(EnforcementTotal.WithLabelValues("exempt", "allow")))
}

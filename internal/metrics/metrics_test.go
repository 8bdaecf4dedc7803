package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	r.Observe(RunStats{
		Started:         time.Unix(1700000000, 0),
		Duration:        1500 * time.Millisecond,
		Success:         false,
		Matched:         12,
		NonCompliant:    3,
		UnknownMFA:      1,
		DeliveryFailure: "network",
	})

	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.matched))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.nonCompliant))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unknownMFA))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.duration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveryFailures.WithLabelValues("network")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.deliveryFailures.WithLabelValues("transport")))

	r.Observe(RunStats{Started: time.Unix(1700000100, 0), Success: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.deliveryFailures.WithLabelValues("network")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(RunStats{Started: time.Unix(1700000000, 0), Success: true, Matched: 2, NonCompliant: 1})

	path := filepath.Join(t.TempDir(), "textfile", "mfareport.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE mfareport_last_run_success gauge")
	assert.Contains(t, text, "mfareport_last_run_success 1")
	assert.Contains(t, text, "mfareport_users_matched 2")
	assert.Contains(t, text, "mfareport_users_noncompliant 1")
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, NewRecorder().WriteTextfile(""))
}

func TestGather(t *testing.T) {
	r := NewRecorder()
	r.Observe(RunStats{Started: time.Now()})

	families, err := r.Gather().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

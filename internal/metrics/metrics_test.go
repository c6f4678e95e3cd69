package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersFamilies(t *testing.T) {
	c := NewCollector("testns")

	c.RecordCall("nd", "create", 5*time.Millisecond, nil)
	c.RecordCall("nd", "getitem", time.Millisecond, errors.New("boom"))
	c.RecordHandleCreated("array")
	c.RecordHandleReleased()
	c.RecordBufferView(128)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["testns_foreign_calls_total"])
	assert.True(t, names["testns_foreign_call_duration_seconds"])
	assert.True(t, names["testns_handle_live"])
	assert.True(t, names["testns_handle_created_total"])
	assert.True(t, names["testns_handle_releases_total"])
	assert.True(t, names["testns_bridge_view_bytes"])
}

func TestHandlesLiveGauge(t *testing.T) {
	c := NewCollector("testns")

	c.RecordHandleCreated("array")
	c.RecordHandleCreated("view")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.handlesLive))

	// Scalars hold no foreign reference and never count as live.
	c.RecordHandleCreated("scalar")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.handlesLive))

	c.RecordHandleReleased()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handlesLive))
}

func TestDefaultNamespace(t *testing.T) {
	c := NewCollector("")

	c.RecordCall("nd", "create", time.Millisecond, nil)
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "numlink_foreign_calls_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()
	c.RecordCall("nd", "create", time.Millisecond, nil)
	c.RecordHandleCreated("array")
	c.RecordHandleReleased()
	c.RecordBufferView(64)
}

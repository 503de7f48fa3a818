package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Uploads.WithLabelValues("vehicles", "loaded").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(Uploads.WithLabelValues("vehicles", "loaded")))

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["dataset_uploads_total"])
	assert.True(t, names["sessions_active"])
}

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	tel := NewScopedAPI("registry", rec)

	tel.ReportBroken("client.fetch-profile", "boom")
	tel.ReportWarning("client.fetch-officers")
	tel.ReportCount("client.search", 3)

	broken := rec.Find(KindBroken, "client.fetch-profile")
	require.Len(t, broken, 1)
	require.Equal(t, "registry: client.fetch-profile", broken[0].ID)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	require.Len(t, rec.Find(KindWarning, "fetch-officers"), 1)
	counts := rec.Find(KindCount, "client.search")
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Count)
}

func TestPrometheusAPI(t *testing.T) {
	rec := &Recorder{}
	tel := NewPrometheusAPI(prometheus.NewRegistry(), Multi{rec})

	tel.ReportWarning("locator.scan")
	tel.ReportWarning("locator.scan")
	tel.ReportBroken("download.fetch")
	tel.ReportCount("download.fetch-all", 7)

	require.Equal(t, 2.0, testutil.ToFloat64(tel.warnings.WithLabelValues("locator.scan")))
	require.Equal(t, 1.0, testutil.ToFloat64(tel.broken.WithLabelValues("download.fetch")))
	require.Equal(t, 7.0, testutil.ToFloat64(tel.counts.WithLabelValues("download.fetch-all")))

	require.Len(t, rec.Find(KindWarning, "locator.scan"), 2)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCollector(t *testing.T) {
	Convey("Given a collector on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		c := NewCollector(registry)

		Convey("When connector calls are observed", func() {
			c.ObserveConnector("ebay", "ok", 200*time.Millisecond)
			c.ObserveConnector("ebay", "ok", 300*time.Millisecond)
			c.ObserveConnector("mercari", "no_data", time.Second)

			Convey("Then counts are kept per source and outcome", func() {
				So(testutil.ToFloat64(c.connectorRequests.WithLabelValues("ebay", "ok")), ShouldEqual, 2)
				So(testutil.ToFloat64(c.connectorRequests.WithLabelValues("mercari", "no_data")), ShouldEqual, 1)
			})
		})

		Convey("When cache lookups are observed", func() {
			c.ObserveCache("quick", true)
			c.ObserveCache("quick", false)
			c.ObserveCache("quick", false)

			Convey("Then hits and misses are separated", func() {
				So(testutil.ToFloat64(c.cacheLookups.WithLabelValues("quick", "hit")), ShouldEqual, 1)
				So(testutil.ToFloat64(c.cacheLookups.WithLabelValues("quick", "miss")), ShouldEqual, 2)
			})
		})

		Convey("When a source is skipped at startup", func() {
			c.ObserveSkipped("pricecharting")

			Convey("Then it is counted under the skipped outcome without a latency sample", func() {
				So(testutil.ToFloat64(c.connectorRequests.WithLabelValues("pricecharting", "skipped")), ShouldEqual, 1)
				So(testutil.CollectAndCount(c.connectorLatency), ShouldEqual, 0)
			})
		})

		Convey("When quota is published", func() {
			c.SetQuotaRemaining("ebay", 4999)
			c.SetQuotaRemaining("ebay-web", -1)

			Convey("Then only metered sources appear", func() {
				So(testutil.ToFloat64(c.quotaRemaining.WithLabelValues("ebay")), ShouldEqual, 4999)
				So(testutil.CollectAndCount(c.quotaRemaining), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a nil collector", t, func() {
		var c *Collector

		Convey("Then every observation is a no-op", func() {
			So(func() {
				c.ObserveConnector("ebay", "ok", time.Second)
				c.ObserveCache("quick", true)
				c.ObserveFallback("guide", "ok")
				c.SetQuotaRemaining("ebay", 1)
				c.ObserveSkipped("ebay")
			}, ShouldNotPanic)
		})
	})
}

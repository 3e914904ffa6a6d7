package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 服务自监控指标
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CatalogFetchesTotal *prometheus.CounterVec
	CatalogVehicles     prometheus.Gauge
	QuotesTotal         *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
}

// New 在指定 Registerer 上注册指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentdesk_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rentdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		CatalogFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentdesk_catalog_fetches_total",
				Help: "Vehicle catalog fetch attempts",
			},
			[]string{"result"}, // success/failure
		),
		CatalogVehicles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rentdesk_catalog_vehicles",
				Help: "Vehicles in the loaded catalog",
			},
		),
		QuotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentdesk_quotes_total",
				Help: "Charge summaries computed",
			},
			[]string{"result"}, // ok/missing_rate/catalog_error
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rentdesk_sessions_active",
				Help: "Reservation sessions held in memory",
			},
		),
	}
}

// Middleware 记录 HTTP 请求指标
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

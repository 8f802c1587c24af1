package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标定义

// httpRequestsTotal 计数器：记录所有 HTTP 请求总数
// 标签：
//   - method: HTTP 方法
//   - path: 路由模板 (/wx/msg/:appId 等)
//   - status: HTTP 状态码
var httpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wxmp_http_requests_total",
		Help: "Total number of HTTP requests processed by the wxmp server",
	},
	[]string{"method", "path", "status"},
)

// httpBusinessCodeTotal 计数器：记录业务状态码分布
var httpBusinessCodeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wxmp_http_business_code_total",
		Help: "Total number of HTTP requests by business code",
	},
	[]string{"method", "path", "business_code"},
)

// httpRequestDuration 直方图：记录请求耗时分布
var httpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wxmp_http_request_duration_seconds",
		Help:    "HTTP request latency distributions in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

// wxMessagesTotal 计数器：按消息类型统计收到的微信消息
// msg_type 取值：text / event / 其他微信消息类型
var wxMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wxmp_wx_messages_total",
		Help: "Total number of WeChat messages received by message type",
	},
	[]string{"msg_type"},
)

// PrometheusMiddleware Prometheus 监控中间件
// 自动记录所有 HTTP 请求的指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		path := c.FullPath()
		if path == "" {
			// 未匹配到路由（404），避免把任意路径打进标签
			path = "unmatched"
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		// 业务状态码由 result 封装写入 gin context
		if code, exists := c.Get("business_code"); exists {
			if codeInt, ok := code.(int); ok {
				httpBusinessCodeTotal.WithLabelValues(method, path, strconv.Itoa(codeInt)).Inc()
			}
		}
	}
}

// RecordWxMessage 记录一条收到的微信消息
func RecordWxMessage(msgType string) {
	wxMessagesTotal.WithLabelValues(msgType).Inc()
}

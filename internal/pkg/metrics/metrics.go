package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SignupCodeIssuedTotal 已签发的确认码数量。
	SignupCodeIssuedTotal prometheus.Counter
	// TokenIssuedTotal 已签发的访问令牌数量。
	TokenIssuedTotal prometheus.Counter
	// ReviewDuplicateRejectedTotal 被拒绝的重复评价数量。
	ReviewDuplicateRejectedTotal prometheus.Counter
	// RateLimitRejectedTotal 被限流拒绝的请求数量。
	RateLimitRejectedTotal prometheus.Counter

	initOnce sync.Once
)

// InitMetrics 注册 Prometheus 指标，可安全重复调用。
func InitMetrics() {
	initOnce.Do(func() {
		SignupCodeIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewhub_signup_code_issued_total",
			Help: "Number of confirmation codes issued.",
		})
		TokenIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewhub_token_issued_total",
			Help: "Number of access tokens issued.",
		})
		ReviewDuplicateRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewhub_review_duplicate_rejected_total",
			Help: "Number of duplicate review submissions rejected.",
		})
		RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewhub_ratelimit_rejected_total",
			Help: "Number of requests rejected by the auth rate limiter.",
		})

		prometheus.MustRegister(
			SignupCodeIssuedTotal,
			TokenIssuedTotal,
			ReviewDuplicateRejectedTotal,
			RateLimitRejectedTotal,
		)
	})
}

package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/honeynil/ShopBotLedger/internal/handler"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/auth"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
)

// WebhookSecretHeader carries the secret shared with the chat transport.
const WebhookSecretHeader = "X-Webhook-Secret"

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

type RouterConfig struct {
	RedisClient   redis.RedisClient
	Tokens        *auth.TokenService
	AdminID       int64
	WebhookSecret string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func SetupRouter(h *handler.Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.Handle("/events", webhookMiddleware(cfg.WebhookSecret)(http.HandlerFunc(h.HandleEvent))).Methods("POST")
	h.RegisterPublicRoutes(v1)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AuthMiddleware(cfg.RedisClient, cfg.Tokens, cfg.AdminID))
	h.RegisterProtectedRoutes(admin)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods("GET")
	}
	return r
}

// metricsMiddleware labels requests by route template so path ids do not
// blow up the series count.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		RequestCounter.WithLabelValues(r.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// webhookMiddleware rejects deliveries without the shared secret. An empty
// secret disables the webhook.
func webhookMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

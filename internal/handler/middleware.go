package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	twilioclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// LoggingMiddleware logs every HTTP request with its status and latency.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.Base().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// RecoveryMiddleware converts handler panics into a 500 so one bad request
// cannot take the process down.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Base().Error("handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// TwilioSignatureMiddleware rejects webhook requests whose X-Twilio-Signature
// does not match. Only paths under /webhook/ are checked; disabling via
// config is meant for local development behind a tunnel.
func TwilioSignatureMiddleware(authToken, publicBaseURL string, enabled bool) func(http.Handler) http.Handler {
	validator := twilioclient.NewRequestValidator(authToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || authToken == "" || !strings.HasPrefix(r.URL.Path, "/webhook/") {
				next.ServeHTTP(w, r)
				return
			}

			signature := r.Header.Get("X-Twilio-Signature")
			if signature == "" {
				logger.Base().Warn("webhook request without signature",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				http.Error(w, "missing signature", http.StatusForbidden)
				return
			}

			if err := r.ParseForm(); err != nil {
				http.Error(w, "malformed form body", http.StatusBadRequest)
				return
			}

			params := make(map[string]string, len(r.PostForm))
			for key := range r.PostForm {
				params[key] = r.PostForm.Get(key)
			}

			// The signature covers the public URL the gateway called,
			// not whatever host the load balancer forwarded to us.
			url := strings.TrimRight(publicBaseURL, "/") + r.URL.RequestURI()
			if !validator.Validate(url, params, signature) {
				logger.Base().Warn("webhook signature mismatch",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitMessage   = "Too many requests. Please wait a moment and try again."
	sentryFlushTimeout = 2 * time.Second
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := strings.TrimSpace(ctx.Header("X-Request-ID"))
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		if s.rateLimiter.Allow(ip) {
			next(ctx)
			return
		}

		fields := requestFields(ctx.Context(), logrus.Fields{"ip": ip, "path": req.URL.Path, "site": s.site.Name})
		if s.logger != nil {
			s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
		}

		ctx.SetHeader("Retry-After", "1")
		writeHTML(ctx, s.renderErrorResponse(ctx.Context(), stdhttp.StatusTooManyRequests, rateLimitMessage))
	}
}

// writeHTML sends a rendered page from middleware, outside the Huma operation pipeline.
func writeHTML(ctx huma.Context, resp *htmlResponse) {
	ctx.SetHeader("Content-Type", resp.ContentType)
	ctx.SetStatus(resp.Status)
	_, _ = ctx.BodyWriter().Write(resp.Body)
}

func requestFields(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}

		if op := ctx.Operation(); op != nil {
			fields["route"] = op.Path
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
			fields["remote_addr"] = req.RemoteAddr
		}

		fields["site"] = s.site.Name

		entry := s.logger.WithFields(requestFields(ctx.Context(), fields))
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}

// recoveryMiddleware turns a panicking handler into the regular 500 error page.
func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = eris.Errorf("panic: %v", rec)
			}

			fields := logrus.Fields{"method": ctx.Method(), "site": s.site.Name}
			if req, _ := humago.Unwrap(ctx); req != nil {
				fields["path"] = req.URL.Path
			}
			s.recordError(ctx.Context(), err, "panic recovered", fields)

			if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
				hub.RecoverWithContext(ctx.Context(), rec)
			}

			writeHTML(ctx, s.renderErrorResponse(ctx.Context(), stdhttp.StatusInternalServerError, errorFallbackMessage))
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		scope.SetTag("site", s.site.Name)
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(sentryFlushTimeout)

		next(ctx)
	}
}

// clientIPFromRequest keys the rate limiter. Proxy headers win over the socket address.
func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	first, _, _ := strings.Cut(req.Header.Get("X-Forwarded-For"), ",")
	if candidate := strings.TrimSpace(first); candidate != "" {
		return candidate
	}
	if candidate := strings.TrimSpace(req.Header.Get("X-Real-IP")); candidate != "" {
		return candidate
	}

	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(req.RemoteAddr)
}

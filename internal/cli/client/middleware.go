package client

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Navigator moves the application to another route
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// RoundTripperFunc adapts a function to http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Unauthorized navigates to signInPath whenever a response carries 401.
// The response itself is returned untouched so the caller can still handle it.
// Transport errors are logged and propagated.
func Unauthorized(nav Navigator, signInPath string, log zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				log.Error().Err(err).
					Str("method", req.Method).
					Str("url", req.URL.String()).
					Msg("Fetch error")
				return nil, err
			}

			if resp.StatusCode == http.StatusUnauthorized {
				log.Debug().Str("path", req.URL.Path).Msg("Unauthorized response, redirecting to sign in")
				if navErr := nav.Navigate(req.Context(), signInPath); navErr != nil {
					log.Warn().Err(navErr).Str("target", signInPath).Msg("Failed to navigate after 401")
				}
			}

			return resp, nil
		})
	}
}

// Logging records every request with its status and duration
func Logging(log zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			duration := time.Since(start)

			if err != nil {
				log.Debug().
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Dur("duration", duration).
					Err(err).
					Msg("HTTP request failed")
				return nil, err
			}

			log.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", resp.StatusCode).
				Dur("duration", duration).
				Msg("HTTP request")
			return resp, nil
		})
	}
}

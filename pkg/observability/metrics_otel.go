package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/manitejabayya/Sports-Ecosystem"

// OTelMetrics holds OpenTelemetry instruments mirroring the auth counters
type OTelMetrics struct {
	authAttempts     metric.Int64Counter
	tokenValidations metric.Int64Counter
	rateLimit        metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)

	m := &OTelMetrics{}
	var err error

	m.authAttempts, err = meter.Int64Counter(
		"auth.attempts",
		metric.WithDescription("Registration, login and password change attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.attempts counter: %w", err)
	}

	m.tokenValidations, err = meter.Int64Counter(
		"auth.token.validations",
		metric.WithDescription("Session token validations"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.token.validations counter: %w", err)
	}

	m.rateLimit, err = meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Per-identity rate limit decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.decisions counter: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) recordAuthAttempt(operation, result string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

func (m *OTelMetrics) recordTokenValidation(result string) {
	if m == nil {
		return
	}
	m.tokenValidations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

func (m *OTelMetrics) recordRateLimit(limiter, decision string) {
	if m == nil {
		return
	}
	m.rateLimit.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("limiter", limiter),
		attribute.String("decision", decision),
	))
}

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestService_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	f := newServiceFixture(t)
	ctx := context.Background()

	session := f.register(t, "Priya", "priya@x.io", "secret1", "")
	_, err := f.svc.Login(ctx, "priya@x.io", "wrong-password")
	require.Error(t, err)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		byName[s.Name] = s
	}

	register, ok := byName["auth.Register"]
	require.True(t, ok, "register span missing")
	assert.Equal(t, codes.Unset, register.Status.Code)

	var userID string
	for _, attr := range register.Attributes {
		if attr.Key == "user.id" {
			userID = attr.Value.AsString()
		}
	}
	assert.Equal(t, session.User.ID, userID)

	login, ok := byName["auth.Login"]
	require.True(t, ok, "login span missing")
	assert.Equal(t, codes.Error, login.Status.Code)
	assert.NotEmpty(t, login.Events, "login failure should be recorded on the span")
}

package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(NewRedactingCore(core)), logs
}

func TestRedactingCore_Message(t *testing.T) {
	l, logs := newObserved()

	l.Info("retrying with Bearer abc123.def456")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "retrying with Bearer [REDACTED]", logs.All()[0].Message)
}

func TestRedactingCore_Fields(t *testing.T) {
	l, logs := newObserved()

	l.Warn("jetnet.login_failed",
		zap.String("body", `{"emailaddress":"pilot@example.com","password":"s3cret"}`),
		zap.Error(errors.New("upstream said password=s3cret")),
		zap.Int("status", 401),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, `{"emailaddress":"[REDACTED]","password":"[REDACTED]"}`, ctx["body"])
	assert.Equal(t, "upstream said password=[REDACTED]", ctx["error"])
	assert.EqualValues(t, 401, ctx["status"])
}

func TestRedactingCore_With(t *testing.T) {
	l, logs := newObserved()

	l.With(zap.String("auth", "Bearer xyz")).Info("call")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Bearer [REDACTED]", logs.All()[0].ContextMap()["auth"])
}

func TestRedactingCore_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := zap.New(NewRedactingCore(core))

	l.Info("dropped")
	l.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestL_InitializesLazily(t *testing.T) {
	log, sugar = nil, nil
	assert.NotNil(t, L())
	assert.NotNil(t, S())
}

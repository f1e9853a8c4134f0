package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// New builds a logger for service. env "dev" selects the colored console
// encoder; anything else ("uat", "prod") produces JSON. An unparsable level
// keeps the encoder default. The core is always wrapped by NewRedactingCore
// so session tokens and credentials never reach the sink.
func New(service, env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.WrapCore(NewRedactingCore),
		zap.Fields(zap.String("service", service)),
	)
}

// Init installs the process-wide logger returned by L and S.
func Init(service, env, level string) {
	l, err := New(service, env, level)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	log = l
	sugar = l.Sugar()
	zap.ReplaceGlobals(l)

	sugar.Infow("logger initialized",
		"service", service,
		"env", env,
		"level", level,
	)
}

// L returns the base structured logger.
func L() *zap.Logger {
	if log == nil {
		Init("unknown", "dev", "info")
	}
	return log
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("unknown", "dev", "info")
	}
	return sugar
}

// Sync flushes buffered entries. Defer it in main.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantLevel zapcore.Level
	}{
		{name: "debug mode", debug: true, wantLevel: zapcore.DebugLevel},
		{name: "production mode", debug: false, wantLevel: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, atom, err := SetupLogger(tt.debug)
			if err != nil {
				t.Fatalf("SetupLogger failed: %v", err)
			}
			defer logger.Sync()

			if atom.Level() != tt.wantLevel {
				t.Errorf("Expected level %v, got %v", tt.wantLevel, atom.Level())
			}
		})
	}
}

func TestFuncLoggerAndExit(t *testing.T) {
	logger := zap.NewNop()

	funcLogger, start := FuncLogger(logger, "TestFuncLoggerAndExit")
	if funcLogger == nil {
		t.Fatal("FuncLogger returned nil logger")
	}
	if start.IsZero() {
		t.Error("FuncLogger returned zero start time")
	}

	// Must not panic
	FuncExit(funcLogger, start)
}

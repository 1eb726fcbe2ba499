package service

import (
	"os"
	"testing"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	restore := zap.ReplaceGlobals(zap.NewNop())
	code := m.Run()
	restore()
	os.Exit(code)
}

package app

import (
	"os"
	"path/filepath"
	"testing"

	logx "remindbot/pkg/logx"
)

func noLog() logx.Logger { return logx.Nop() }

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

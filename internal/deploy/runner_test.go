//go:build !windows

package deploy

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	p, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return p
}

func TestExecRunner_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want int
	}{
		{"zero exit", Command{Path: lookPath(t, "true")}, 0},
		{"non-zero exit", Command{Path: lookPath(t, "false")}, 1},
		{"exit code is passed through", Command{Path: lookPath(t, "sh"), Args: []string{"-c", "exit 3"}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ExecRunner{}.Run(context.Background(), tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestExecRunner_LaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "setup.exe")

	code, err := ExecRunner{}.Run(context.Background(), Command{Path: missing, Args: []string{"/S"}})
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

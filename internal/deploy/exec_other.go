//go:build !windows

package deploy

import "os/exec"

func configureCmd(cmd *exec.Cmd) {}

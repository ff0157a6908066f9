//go:build windows

package agent

import "golang.org/x/sys/windows"

func isAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

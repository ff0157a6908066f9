package deploy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
)

// Default installer arguments when the catalog entry carries none.
const (
	DefaultMsiArgs = "/quiet /norestart"
	DefaultExeArgs = "/S /quiet"
)

// installCommand picks the installer invocation for the package at path by its extension.
func installCommand(path, installArgs string) (Command, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".msi":
		args, err := splitArgs(installArgs, DefaultMsiArgs)
		if err != nil {
			return Command{}, err
		}
		return Command{Path: "msiexec.exe", Args: append([]string{"/i", path}, args...)}, nil
	case ".exe":
		args, err := splitArgs(installArgs, DefaultExeArgs)
		if err != nil {
			return Command{}, err
		}
		return Command{Path: path, Args: args}, nil
	case ".inf":
		return Command{Path: "pnputil.exe", Args: []string{"/add-driver", path, "/install"}}, nil
	default:
		if ext == "" {
			ext = "(none)"
		}
		return Command{}, fmt.Errorf("%w: %s", errdefs.ErrUnsupportedPackage, ext)
	}
}

// splitArgs splits catalog arguments like a POSIX shell. Backslashes escape, so
// Windows paths inside arguments must be quoted.
func splitArgs(raw, fallback string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}

	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false

	args, err := p.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse install arguments %q: %v", errdefs.ErrInstaller, raw, err)
	}
	return args, nil
}

// Package errdefs defines the failure kinds shared by the catalog, deploy and discovery layers.
package errdefs

import "errors"

var (
	// ErrTransport marks an unreachable node, catalog or package source.
	ErrTransport = errors.New("transport error")
	// ErrIntegrity marks a package whose content hash does not match the catalog.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrInstaller marks an installer that exited non-zero or could not be launched.
	ErrInstaller = errors.New("installer error")
	// ErrUnsupportedPackage marks a package with an unrecognized file extension.
	ErrUnsupportedPackage = errors.New("unsupported package type")
	// ErrCatalogParse marks a malformed or empty catalog document.
	ErrCatalogParse = errors.New("catalog parse error")
)

// Kind labels used in InstallOutcome.Kind and metric labels.
const (
	KindTransport   = "transport"
	KindIntegrity   = "integrity"
	KindInstaller   = "installer"
	KindUnsupported = "unsupported"
	KindCatalog     = "catalog"
	KindInternal    = "internal"
)

// KindOf maps an error to its kind label. nil maps to "".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrInstaller):
		return KindInstaller
	case errors.Is(err, ErrUnsupportedPackage):
		return KindUnsupported
	case errors.Is(err, ErrCatalogParse):
		return KindCatalog
	default:
		return KindInternal
	}
}

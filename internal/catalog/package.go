package catalog

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// ResolvePackage builds the install request for entry. A relative entry URL is joined to base.
func ResolvePackage(base string, entry v1.CatalogEntry) v1.ResolvedPackage {
	download := entry.URL
	if !isAbsolute(download) {
		download = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(download, "/")
	}

	return v1.ResolvedPackage{
		Name:        entry.Name,
		Version:     entry.Version,
		DownloadURL: download,
		InstallArgs: entry.InstallArgs,
		SHA256:      entry.SHA256,
		FileName:    fileName(download),
	}
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// fileName is the last path element of the download URL. URLs without one get a random name,
// which the node will reject as an unsupported package.
func fileName(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "package-" + uuid.NewString()
	}
	return name
}

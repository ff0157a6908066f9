package v1

import "time"

// CatalogEntry is one driver package offered by the catalog.
type CatalogEntry struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	HardwareIDs []string `json:"hardwareIds,omitempty"`

	// URL is either absolute or relative to the catalog base address.
	URL         string `json:"url"`
	InstallArgs string `json:"installArgs,omitempty"`

	// SHA256 is the hex digest of the package. Empty disables verification.
	SHA256 string `json:"sha256,omitempty"`
}

// CatalogDocument is the wire form of drivers.json.
type CatalogDocument struct {
	Drivers []CatalogEntry `json:"drivers"`
}

// SnapshotSource tells where the entries of a CatalogSnapshot came from.
type SnapshotSource string

const (
	SnapshotSourceRemote   SnapshotSource = "remote"
	SnapshotSourceBaseline SnapshotSource = "baseline"
)

// CatalogSnapshot is an immutable view of the catalog. A snapshot is either the remote
// document or the built-in baseline, never a mix of both.
type CatalogSnapshot struct {
	Entries   []CatalogEntry `json:"entries"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Source    SnapshotSource `json:"source"`

	// BaseURL is the catalog base used to resolve relative entry URLs.
	BaseURL string `json:"baseUrl"`
}

// Lookup returns the entry with the given name.
func (s *CatalogSnapshot) Lookup(name string) (CatalogEntry, bool) {
	if s == nil {
		return CatalogEntry{}, false
	}
	for _, e := range s.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

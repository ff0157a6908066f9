package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
)

func (r *run) download(ctx context.Context) error {
	if err := os.MkdirAll(r.p.tempRoot, 0o755); err != nil {
		return fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(r.p.tempRoot, "install-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	r.workDir = dir
	r.file = filepath.Join(dir, packageFileName(r.pkg.FileName, r.pkg.DownloadURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.pkg.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid download url %q: %v", errdefs.ErrTransport, r.pkg.DownloadURL, err)
	}

	resp, err := r.p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", errdefs.ErrTransport, r.pkg.DownloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: download %s: server returned status: %s", errdefs.ErrTransport, r.pkg.DownloadURL, resp.Status)
	}

	f, err := os.Create(r.file)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.file, err)
	}

	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(r.file)
		return fmt.Errorf("%w: read package body: %v", errdefs.ErrTransport, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(r.file)
		return fmt.Errorf("write %s: %w", r.file, closeErr)
	}

	return nil
}

func (r *run) verify(_ context.Context) error {
	want := normalizeHash(r.pkg.SHA256)
	if want == "" {
		return nil
	}

	got, err := fileSHA256(r.file)
	if err != nil {
		return fmt.Errorf("%w: hash %s: %v", errdefs.ErrIntegrity, filepath.Base(r.file), err)
	}
	if got != want {
		return fmt.Errorf("%w: sha256 mismatch: expected %s, got %s", errdefs.ErrIntegrity, want, got)
	}
	return nil
}

func fileSHA256(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeHash lowercases a hex digest and drops the "-", ":" and space separators.
func normalizeHash(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", ":", "", " ", "").Replace(strings.TrimSpace(s)))
}

// packageFileName picks a local file name that cannot escape the work dir.
func packageFileName(name, rawURL string) string {
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = filepath.Base(filepath.Clean(string(filepath.Separator) + name))
	if name == "" || name == "." || name == string(filepath.Separator) || name == "/" {
		return "driver_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".tmp"
	}
	return name
}

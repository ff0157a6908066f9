package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/driverfleet/driverfleet/pkg/log"
)

// watch logs whether the catalog document still parses every time it changes on disk.
// The directory is watched rather than the file so editors that replace the file are seen.
func (s *Server) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.root); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	target := filepath.Join(s.root, CatalogFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			s.onCatalogEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("Catalog watcher error", "error", err)
		}
	}
}

func (s *Server) onCatalogEvent(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		log.Warn("Catalog document removed", "path", ev.Name)
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		n, err := inspectCatalog(ev.Name)
		if err != nil {
			log.Warn("Catalog document does not parse; consoles will fall back to the baseline", "path", ev.Name, "error", err)
			return
		}
		log.Info("Catalog document updated", "path", ev.Name, "drivers", n)
	}
}

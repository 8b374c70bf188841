// Package prefs persists remote surface preferences in a TOML file shared by
// every surface of the same user.
package prefs

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/20after4/configdir"
	"github.com/ffx64/presence-bridge/remote"
	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

const FileName = "remote.toml"

type File struct {
	Path string

	mu sync.Mutex
}

var _ remote.Preferences = (*File)(nil)

// Default returns the preferences file in the user's config dir for app.
func Default(app string) *File {
	return &File{Path: filepath.Join(configdir.LocalConfig(app), FileName)}
}

// Load reads the file, falling back to remote.DefaultPrefs when it does not
// exist yet.
func (f *File) Load() (remote.Prefs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := remote.DefaultPrefs()
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := toml.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
		return remote.DefaultPrefs(), err
	}
	return p, nil
}

func (f *File) Save(p remote.Prefs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := toml.Marshal(p)
	if err != nil {
		return err
	}
	if err := configdir.MakePath(filepath.Dir(f.Path)); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Watch calls apply with freshly loaded preferences whenever the file is
// written by anyone, until ctx is done.
func (f *File) Watch(ctx context.Context, apply func(remote.Prefs), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(f.Path)
	if err := configdir.MakePath(dir); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// watch the directory: Save replaces the file by rename
	if err := w.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.Path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			p, err := f.Load()
			if err != nil {
				logger.Warn("failed to reload remote preferences", "path", f.Path, "error", err)
				continue
			}
			apply(p)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("preferences watcher error", "error", err)
		}
	}
}

package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Dir serves payloads from files under a root directory. URIs are slash-separated
// paths relative to the root. Connect watches the tree and notifies listeners of
// modified files.
type Dir struct {
	Listeners

	root   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewDir(root string, opts ...Option) *Dir {
	c := newConfig(opts)
	return &Dir{root: root, logger: c.Logger}
}

func (d *Dir) filePath(uri string) (string, error) {
	if strings.Contains(uri, "://") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	clean := path.Clean("/" + uri)
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *Dir) uri(filePath string) (string, bool) {
	rel, err := filepath.Rel(d.root, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (d *Dir) Data(_ context.Context, uri string) ([]byte, Version, error) {
	filePath, err := d.filePath(uri)
	if err != nil {
		return nil, 0, err
	}
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, uri)
	}
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, 0, err
	}
	return data, Version(info.ModTime().UnixNano()), nil
}

// Visit calls the visitor for every file under the root.
func (d *Dir) Visit(visitor func(uri string, data []byte) error) error {
	return filepath.WalkDir(d.root, func(filePath string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		uri, ok := d.uri(filePath)
		if !ok {
			return nil
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		return visitor(uri, data)
	})
}

func (d *Dir) Connect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(d.root, func(filePath string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return watcher.Add(filePath)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	d.watcher = watcher
	d.done = make(chan struct{})
	go d.watch(watcher, d.done)
	return nil
}

func (d *Dir) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						d.logger.Warn("tiles3d: watch failed", "path", event.Name, "err", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if uri, ok := d.uri(event.Name); ok {
				d.logger.Debug("tiles3d: content changed", "uri", uri, "op", event.Op.String())
				d.Notify(uri)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("tiles3d: watcher error", "err", err)
		}
	}
}

func (d *Dir) Disconnect() error {
	d.mu.Lock()
	watcher, done := d.watcher, d.done
	d.watcher, d.done = nil, nil
	d.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}

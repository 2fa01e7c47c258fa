package moc

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Some filesystems (network mounts in particular) deliver no inotify
// events; a slow mtime poll catches writes fsnotify misses.
const watchFallbackInterval = 2 * time.Second

// Watcher observes the external playlist file for writes made by the
// external player itself and reports each change through notify. The
// parent directory is watched, not the file, so atomic rename-replace
// writes are still seen.
type Watcher struct {
	fw   *fsnotify.Watcher
	path string
	done chan struct{}
}

// WatchPlaylist starts watching path. notify runs on the watcher goroutine;
// callers hand it off to the event loop themselves.
func WatchPlaylist(path string, log logrus.FieldLogger, notify func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{fw: fw, path: filepath.Clean(path), done: make(chan struct{})}

	var lastMtime time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMtime = info.ModTime()
	}
	// check dedupes the two sources: an fsnotify event and the fallback
	// tick both notify only when the mtime actually moved.
	check := func() {
		info, err := os.Stat(w.path)
		if err != nil {
			return
		}
		if mt := info.ModTime(); mt != lastMtime {
			lastMtime = mt
			notify()
		}
	}

	go func() {
		tick := time.NewTicker(watchFallbackInterval)
		defer tick.Stop()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
					check()
				}
			case <-tick.C:
				check()
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("playlist watcher error")
			case <-w.done:
				return
			}
		}
	}()
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

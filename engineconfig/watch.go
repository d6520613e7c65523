package engineconfig

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/entidb/entidb/internal/debug"
)

// watcher holds the fsnotify.Watcher that WatchFile starts over a
// single config file, matching the FileWatcher pattern the teacher
// uses to watch its JSONL store and git refs. Only WatchFile uses it.
type watcher struct {
	mu sync.Mutex
	fw *fsnotify.Watcher
}

// WatchFile re-reads path into Config whenever it changes on disk,
// matching the teacher's config hot-reload behavior. onReload is
// called after a successful re-read; errors re-reading are logged via
// internal/debug and otherwise ignored, since a transient partial
// write shouldn't crash the watching process.
func (c *Config) WatchFile(path string, onReload func(*Config)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("engineconfig: starting watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return fmt.Errorf("engineconfig: watching %s: %w", path, err)
	}

	c.watcher = &watcher{fw: fw}
	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.v.ReadInConfig(); err != nil {
					debug.Logf("engineconfig: reload of %s failed: %v", path, err)
					continue
				}
				if onReload != nil {
					onReload(c)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				debug.Logf("engineconfig: watch error on %s: %v", path, err)
			}
		}
	}()
	return nil
}

// StopWatching closes the underlying fsnotify watcher, if one was
// started.
func (c *Config) StopWatching() error {
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.fw.Close()
	c.watcher = nil
	return err
}

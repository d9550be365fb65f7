package control

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long a patch file has to stay unchanged before it is
// reloaded. Editors often write a file in several steps.
const watchSettle = 100 * time.Millisecond

// Watch reloads the patch file at path whenever it changes, until ctx is
// done. A file that fails to load is reported and the Map is left as it was.
func (c *Controller) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not watch %s: %w", path, err)
	}
	defer watcher.Close()
	target := filepath.Clean(path)
	// watch the directory so that files replaced by a rename are seen too
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("could not watch %s: %w", path, err)
	}
	c.logger.Debug("watching patch file", "path", target)
	var settle <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			settle = time.After(watchSettle)
		case <-settle:
			settle = nil
			if err := c.Reload(path); err != nil {
				c.logger.Error("reloading patch file failed", "path", path, "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("patch file watcher error", "path", path, "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}

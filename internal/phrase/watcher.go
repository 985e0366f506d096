package phrase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// termsFile is the on-disk format for medical terms: a JSON array of entries.
type termsFile []struct {
	Phrase       string `json:"phrase"`
	MediatedText string `json:"mediatedText"`
}

// LoadTermsFile reads a medical terms file and folds every entry into the
// cache. Returns the number of terms loaded.
func LoadTermsFile(c *Cache, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read terms file: %w", err)
	}

	var terms termsFile
	if err := json.Unmarshal(data, &terms); err != nil {
		return 0, fmt.Errorf("parse terms file: %w", err)
	}

	count := 0
	for _, t := range terms {
		if Normalize(t.Phrase) == "" {
			continue
		}
		c.AddTerm(t.Phrase, t.MediatedText)
		count++
	}
	return count, nil
}

// Watcher reloads the medical terms file whenever it changes on disk, so new
// terms become available without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	cache   *Cache
	path    string
	logger  zerolog.Logger
	done    chan struct{}
}

// NewWatcher starts watching path. The file does not need to exist yet; the
// watch covers its directory so a later create is picked up too.
func NewWatcher(cache *Cache, path string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		watcher: fw,
		cache:   cache,
		path:    path,
		logger:  logger.With().Str("component", "terms-watcher").Logger(),
		done:    make(chan struct{}),
	}

	go w.watchLoop()

	return w, nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			count, err := LoadTermsFile(w.cache, w.path)
			if err != nil {
				w.logger.Warn().Err(err).Msg("Failed to reload terms file")
				continue
			}
			w.logger.Info().Int("terms", count).Msg("Medical terms reloaded")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Terms watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

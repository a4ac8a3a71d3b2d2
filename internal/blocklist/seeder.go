// SPDX-License-Identifier: MIT

// Package blocklist seeds upstream text blocklists from a local YAML file
// and keeps them in sync when the file changes on disk.
package blocklist

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/log"
)

// Upstream is the part of the Content Safety client the seeder needs.
type Upstream interface {
	CreateOrUpdateBlocklist(ctx context.Context, name, description string) (*azcs.TextBlocklist, error)
	AddOrUpdateBlocklistItems(ctx context.Context, name string, items []azcs.TextBlocklistItem) ([]azcs.TextBlocklistItem, error)
	ListBlocklistItems(ctx context.Context, name string) ([]azcs.TextBlocklistItem, error)
}

// SeedItem is one blocklist entry in the seed file.
type SeedItem struct {
	Text        string `yaml:"text"`
	Description string `yaml:"description,omitempty"`
}

// SeedList is one blocklist definition in the seed file.
type SeedList struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Items       []SeedItem `yaml:"items,omitempty"`
}

// SeedFile is the on-disk seed format.
type SeedFile struct {
	Blocklists []SeedList `yaml:"blocklists"`
}

// addItemsBatchSize is the upstream limit per addOrUpdate call.
const addItemsBatchSize = 100

// Seeder pushes seed-file blocklists upstream, and optionally re-syncs
// whenever the seed file changes.
type Seeder struct {
	upstream Upstream
	path     string
	logger   zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewSeeder creates a seeder for the given seed file path.
func NewSeeder(upstream Upstream, path string) *Seeder {
	return &Seeder{
		upstream: upstream,
		path:     path,
		logger:   log.WithComponent("blocklist"),
	}
}

// Load parses the seed file without touching the upstream.
func Load(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied config
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, bl := range sf.Blocklists {
		if bl.Name == "" {
			return nil, fmt.Errorf("seed file: blocklist %d has no name", i)
		}
	}
	return &sf, nil
}

// Sync reads the seed file, upserts every list, and pushes the items the
// upstream list does not already hold. Re-running a sync is a no-op and a
// sync never removes items added at runtime.
func (s *Seeder) Sync(ctx context.Context) error {
	sf, err := Load(s.path)
	if err != nil {
		return err
	}

	for _, bl := range sf.Blocklists {
		if _, err := s.upstream.CreateOrUpdateBlocklist(ctx, bl.Name, bl.Description); err != nil {
			return fmt.Errorf("upsert blocklist %q: %w", bl.Name, err)
		}
		pushed, err := s.pushItems(ctx, bl)
		if err != nil {
			return err
		}
		s.logger.Info().
			Str(log.FieldBlocklist, bl.Name).
			Int("items", pushed).
			Str(log.FieldEvent, "blocklist.synced").
			Msg("blocklist synced from seed file")
	}
	return nil
}

// pushItems adds the seed items missing upstream and reports how many it
// pushed. The upstream add call mints a new item ID per submission, so
// reconciling by text is what keeps Sync idempotent.
func (s *Seeder) pushItems(ctx context.Context, bl SeedList) (int, error) {
	existing, err := s.upstream.ListBlocklistItems(ctx, bl.Name)
	if err != nil {
		return 0, fmt.Errorf("list items of blocklist %q: %w", bl.Name, err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		present[it.Text] = struct{}{}
	}

	items := make([]azcs.TextBlocklistItem, 0, len(bl.Items))
	for _, it := range bl.Items {
		if it.Text == "" {
			continue
		}
		if _, ok := present[it.Text]; ok {
			continue
		}
		items = append(items, azcs.TextBlocklistItem{
			Text:        it.Text,
			Description: it.Description,
		})
	}
	pushed := len(items)
	for len(items) > 0 {
		batch := items
		if len(batch) > addItemsBatchSize {
			batch = batch[:addItemsBatchSize]
		}
		if _, err := s.upstream.AddOrUpdateBlocklistItems(ctx, bl.Name, batch); err != nil {
			return 0, fmt.Errorf("add items to blocklist %q: %w", bl.Name, err)
		}
		items = items[len(batch):]
	}
	return pushed, nil
}

// Watch re-syncs the seed file whenever it is rewritten on disk. It returns
// after installing the watcher; the watch loop runs until ctx is cancelled.
func (s *Seeder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch seed file: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	s.logger.Info().
		Str(log.FieldPath, s.path).
		Str(log.FieldEvent, "blocklist.watch_started").
		Msg("watching blocklist seed file for changes")

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Seeder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	// Editors often emit several events per save; collapse them.
	var debounce *time.Timer
	const debounceAfter = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceAfter, func() {
				if err := s.Sync(ctx); err != nil {
					s.logger.Error().
						Err(err).
						Str(log.FieldEvent, "blocklist.resync_failed").
						Msg("seed file changed but resync failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().
				Err(err).
				Str(log.FieldEvent, "blocklist.watch_error").
				Msg("seed file watcher error")
		}
	}
}

// Stop closes the watcher, if Watch was started.
func (s *Seeder) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
}

// Package progress keeps saved playback offsets in a JSON file, for hosts
// that run without the sqlite database.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/sonroyaalmerol/feedplay/internal/filesystem"
)

type FileStore struct {
	mu     sync.Mutex
	cacher *gache.Cache[map[string]int64]
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		cacher: gache.New[map[string]int64](&gache.Options{
			Path:       path,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

func (s *FileStore) load() (map[string]int64, error) {
	saved, expired, err := s.cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || saved == nil {
		return make(map[string]int64), nil
	}
	return saved, nil
}

func (s *FileStore) GetProgress(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return 0, err
	}
	return time.Duration(saved[key]) * time.Millisecond, nil
}

// SetProgress with a zero position drops the entry.
func (s *FileStore) SetProgress(_ context.Context, key string, pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return err
	}
	if pos <= 0 {
		delete(saved, key)
	} else {
		saved[key] = pos.Milliseconds()
	}
	return s.cacher.Set(saved)
}

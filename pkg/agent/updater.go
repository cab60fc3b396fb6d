package agent

import (
	"encoding/json"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jcodybaker/wgsync/pkg/config"
	"github.com/jcodybaker/wgsync/pkg/fileutil"
	"github.com/jcodybaker/wgsync/pkg/proto"
)

// source is one per-source slot: the local policy, the last successfully
// parsed document, and the refresh state machine.
type source struct {
	config     config.Source
	data       *proto.Source
	nextUpdate time.Time
	backoff    time.Duration // 0 while the source is healthy
}

// updater refreshes source slots and mirrors every successful fetch into the
// cache directory.
type updater struct {
	ll             log.FieldLogger
	refresh        time.Duration
	cacheDirectory string
}

func (u *updater) cachePath(s *source) string {
	if u.cacheDirectory == "" {
		return ""
	}
	return filepath.Join(u.cacheDirectory, s.config.Name)
}

func (u *updater) cacheUpdate(s *source) {
	path := u.cachePath(s)
	if path == "" {
		return
	}
	data, err := json.Marshal(s.data)
	if err == nil {
		err = fileutil.Update(path, data)
	}
	if err != nil {
		u.ll.Warnf("Failed to cache [%s]: %v", s.config.Name, err)
	}
}

// cacheLoad installs the cached document for s, if one loads. Read and parse
// failures are logged but never fatal.
func (u *updater) cacheLoad(s *source) bool {
	path := u.cachePath(s)
	if path == "" {
		return false
	}
	data, found, err := fileutil.Load(path)
	if err != nil {
		u.ll.Errorf("Failed to read [%s] from cache: %v", s.config.Name, err)
		return false
	}
	if !found {
		return false
	}
	doc, err := proto.Parse(data)
	if err != nil {
		u.ll.Errorf("Failed to load [%s] from cache: %v", s.config.Name, err)
		return false
	}
	s.data = doc
	return true
}

// update fetches s once. On success the document is replaced, the backoff
// cleared, and the fetch mirrored to the cache; on failure the previous
// document is kept and the backoff grows by a third, bounded by refresh/3.
// The returned time is sampled after the fetch completed.
func (u *updater) update(s *source) (bool, time.Time) {
	doc, err := fetchSource(s.config.URL)
	now := time.Now()
	if err == nil {
		u.ll.Infof("Updated [%s]", s.config.URL)
		s.data = doc
		s.backoff = 0
		s.nextUpdate = now.Add(u.refresh)
		u.cacheUpdate(s)
		return true, now
	}

	b := s.backoff
	if b == 0 {
		b = 10 * time.Second
		if r := u.refresh / 10; r < b {
			b = r
		}
	}
	s.nextUpdate = now.Add(b)
	next := b + b/3
	if max := u.refresh / 3; next > max {
		next = max
	}
	s.backoff = next
	u.ll.Errorf("Failed to update [%s], retrying after %s: %v", s.config.URL, b, err)
	return false, now
}

// Package blob publishes transient audio artifacts to a directory served by
// the static layer, expiring them after a TTL instead of keeping them forever.
package blob

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options tunes artifact storage.
type Options struct {
	// Dir is the directory artifacts are written to.
	Dir string
	// PublicPath is the URL prefix under which Dir is served, e.g. "/audio".
	PublicPath string
	// TTL deletes artifacts older than this. Zero disables expiry.
	TTL time.Duration
	// SweepPeriod is how often the janitor scans for expired artifacts.
	SweepPeriod time.Duration
}

// Store writes artifacts under unique names and returns retrievable URLs.
type Store struct {
	opts Options

	done      chan struct{}
	closeOnce sync.Once
}

// New creates the artifact directory and starts the expiry janitor.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("blob store directory is required")
	}
	if opts.PublicPath == "" {
		opts.PublicPath = "/audio"
	}
	if opts.SweepPeriod <= 0 {
		opts.SweepPeriod = 5 * time.Minute
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	s := &Store{opts: opts, done: make(chan struct{})}
	if opts.TTL > 0 {
		go s.sweepLoop()
	}
	return s, nil
}

// Close stops the expiry janitor.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Dir returns the directory the static layer should serve.
func (s *Store) Dir() string {
	return s.opts.Dir
}

// Put persists data under a fresh unique name and returns its public URL.
func (s *Store) Put(data []byte, ext string) (string, error) {
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.opts.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist artifact: %w", err)
	}
	return path.Join(s.opts.PublicPath, name), nil
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.opts.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepExpired(time.Now())
		}
	}
}

func (s *Store) sweepExpired(now time.Time) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		log.Printf("[blob] sweep failed to read %s: %v", s.opts.Dir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > s.opts.TTL {
			if err := os.Remove(filepath.Join(s.opts.Dir, entry.Name())); err != nil {
				log.Printf("[blob] failed to remove expired artifact %s: %v", entry.Name(), err)
				continue
			}
			log.Printf("[blob] expired artifact %s", entry.Name())
		}
	}
}

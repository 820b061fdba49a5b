// Package statistics summarises the metadata store for the admin api.
package statistics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/repository"
)

const (
	CacheKeyStore   = "productimages:statistics:store"
	CacheExpiration = 5 * time.Minute
)

// StoreStats counts records of the metadata store
type StoreStats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	Preferred  int            `json:"preferred"`
	Unassigned int            `json:"unassigned"`
	PerVariant map[string]int `json:"per_variant"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Cache is where computed stats are kept between requests
type Cache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// Service computes stats and caches them for CacheExpiration
type Service struct {
	images repository.ImageRepository
	cache  Cache

	mu   sync.Mutex
	last *StoreStats
}

// NewService creates a service. cache may be nil, results are then only
// kept in memory.
func NewService(images repository.ImageRepository, cache Cache) *Service {
	return &Service{images: images, cache: cache}
}

// Get returns cached stats unless fresh is set or the cache expired
func (s *Service) Get(ctx context.Context, fresh bool) (*StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fresh {
		if st := s.cached(); st != nil {
			return st, nil
		}
	}

	st, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	s.last = st
	if s.cache != nil {
		data, _ := json.Marshal(st)
		if err := s.cache.Set(CacheKeyStore, string(data), CacheExpiration); err != nil {
			log.Warnf("[Statistics] Failed to cache store stats: %v", err)
		}
	}
	return st, nil
}

func (s *Service) cached() *StoreStats {
	if s.cache != nil {
		raw, err := s.cache.Get(CacheKeyStore)
		if err == nil && raw != "" {
			var st StoreStats
			if json.Unmarshal([]byte(raw), &st) == nil {
				return &st
			}
		}
	}
	if s.last != nil && time.Since(s.last.UpdatedAt) < CacheExpiration {
		return s.last
	}
	return nil
}

func (s *Service) compute(ctx context.Context) (*StoreStats, error) {
	images, err := s.images.Load(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	st := &StoreStats{PerVariant: make(map[string]int), UpdatedAt: time.Now().UTC()}
	for i := range images {
		img := &images[i]
		st.Total++
		if img.Active {
			st.Active++
		}
		if img.PreferredImage {
			st.Preferred++
		}
		if img.ItemCode == "" {
			st.Unassigned++
		}
		for _, key := range img.Pathnames {
			st.PerVariant[key]++
		}
	}
	return st, nil
}

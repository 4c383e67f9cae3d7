package statistics

import (
	"context"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/cache"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	CacheKeyDashboard = "statistics:admin:dashboard"
	CacheExpiration   = time.Minute
	RecentSignupDays  = 7
)

// UserCounter is the account side of the dashboard queries.
type UserCounter interface {
	Count() (int64, error)
	CountActivePaid() (int64, error)
	TierBreakdown() (map[entitlements.Tier]int64, error)
	CountCreatedSince(since time.Time) (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// GenerationCounter is the generation side of the dashboard queries.
type GenerationCounter interface {
	CountAvatars() (int64, error)
	CountVideos() (int64, error)
}

// Dashboard is the admin overview.
type Dashboard struct {
	TotalUsers             int64                       `json:"totalUsers"`
	ActiveSubscriptions    int64                       `json:"activeSubscriptions"`
	TierBreakdown          map[entitlements.Tier]int64 `json:"tierBreakdown"`
	RecentSignups          int64                       `json:"recentSignups"`
	DailySignups           []models.DailyStats         `json:"dailySignups"`
	TotalAvatarGenerations int64                       `json:"totalAvatarGenerations"`
	TotalVideoGenerations  int64                       `json:"totalVideoGenerations"`
}

// Service computes the dashboard and keeps a short-lived copy in Redis.
type Service struct {
	users       UserCounter
	generations GenerationCounter
	rdb         *redis.Client
	ttl         time.Duration
	now         func() time.Time
}

// NewService creates a dashboard service. rdb may be nil to disable caching.
func NewService(users UserCounter, generations GenerationCounter, rdb *redis.Client) *Service {
	return &Service{
		users:       users,
		generations: generations,
		rdb:         rdb,
		ttl:         CacheExpiration,
		now:         time.Now,
	}
}

// Dashboard returns the cached overview or recomputes it.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if s.rdb != nil {
		var cached Dashboard
		if err := cache.GetJSON(ctx, s.rdb, CacheKeyDashboard, &cached); err == nil {
			return &cached, nil
		}
	}

	d, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if err := cache.SetJSON(ctx, s.rdb, CacheKeyDashboard, d, s.ttl); err != nil {
			log.Warnf("[Statistics] Failed to cache dashboard: %v", err)
		}
	}
	return d, nil
}

// Invalidate drops the cached overview.
func (s *Service) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, CacheKeyDashboard).Err(); err != nil {
		log.Warnf("[Statistics] Failed to invalidate dashboard cache: %v", err)
	}
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	since := now.Add(-RecentSignupDays * 24 * time.Hour)
	d := &Dashboard{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalUsers, err = s.users.Count()
		return err
	})
	g.Go(func() (err error) {
		d.ActiveSubscriptions, err = s.users.CountActivePaid()
		return err
	})
	g.Go(func() (err error) {
		d.TierBreakdown, err = s.users.TierBreakdown()
		return err
	})
	g.Go(func() (err error) {
		d.RecentSignups, err = s.users.CountCreatedSince(since)
		return err
	})
	g.Go(func() (err error) {
		d.DailySignups, err = s.users.GetDailyStats(since, now)
		return err
	})
	g.Go(func() (err error) {
		d.TotalAvatarGenerations, err = s.generations.CountAvatars()
		return err
	})
	g.Go(func() (err error) {
		d.TotalVideoGenerations, err = s.generations.CountVideos()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.TierBreakdown == nil {
		d.TierBreakdown = map[entitlements.Tier]int64{}
	}
	if d.DailySignups == nil {
		d.DailySignups = []models.DailyStats{}
	}
	return d, nil
}

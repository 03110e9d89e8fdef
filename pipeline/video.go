package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/parser"
	"github.com/aluiziolira/steamfetch/scraper"
	"github.com/aluiziolira/steamfetch/snapshot"
)

// VideoFile is the published video feed snapshot inside the data directory.
const VideoFile = "bilibili-videos-data.json"

// Reasons a video crawl stopped.
const (
	StopVideoLimit    = "new video limit reached"
	StopMaxScrolls    = "max scrolls reached"
	StopNoMoreContent = "no more content"
	StopNoCards       = "no video cards"
	StopScrollFailed  = "scroll failed"
)

// Feed is an open page that loads more cards as it scrolls.
type Feed interface {
	Height(ctx context.Context) (int64, error)
	ScrollBy(ctx context.Context, distance int) error
	Document(ctx context.Context) ([]byte, error)
}

// VideoCampaign crawls the video site's home feed by scrolling, keeping every
// video seen so far and adding at most VideoMaxNew new ones per run.
type VideoCampaign struct {
	runner
	feed Feed
	path string
}

// NewVideoCampaign wires a video crawl. controller opens the feed (with retries)
// and feed must be the page it opened.
func NewVideoCampaign(cfg *config.Config, controller *scraper.Controller, feed Feed, opts ...Option) *VideoCampaign {
	return &VideoCampaign{
		runner: newRunner(cfg, controller, nil, opts),
		feed:   feed,
		path:   filepath.Join(cfg.DataDir, VideoFile),
	}
}

// Run opens the feed and alternates parse, save and scroll until a stop
// condition. The file is rewritten after every round that added videos.
func (v *VideoCampaign) Run(ctx context.Context) (*models.VideoRunResult, error) {
	result := &models.VideoRunResult{StartTime: v.now()}
	defer func() {
		result.EndTime = v.now()
		result.Stats = v.controller.Stats().Snapshot()
	}()

	var videos []models.Video
	if _, err := snapshot.ReadJSON(v.path, &videos); err != nil {
		slog.Warn("video file unreadable, starting fresh", slog.String("path", v.path), slog.Any("error", err))
		videos = nil
	}
	seen := make(map[string]struct{}, len(videos))
	for _, vid := range videos {
		seen[vid.BvID] = struct{}{}
	}
	slog.Info("video crawl starting", slog.Int("known", len(seen)), slog.Int("max_new", v.cfg.VideoMaxNew))

	target := v.endpoints.VideoFeed()
	body, err := v.controller.Do(ctx, target)
	if err != nil {
		return result, fmt.Errorf("open video feed: %w", err)
	}

	for {
		cards, dropped, err := parser.ParseVideoCards(body, target.URL, v.now())
		if err != nil {
			return result, err
		}
		result.DroppedCards += dropped
		if len(cards) == 0 {
			result.StopReason = StopNoCards
			break
		}

		added := 0
		for _, card := range cards {
			if result.NewVideos >= v.cfg.VideoMaxNew {
				break
			}
			if _, dup := seen[card.BvID]; dup {
				continue
			}
			seen[card.BvID] = struct{}{}
			videos = append(videos, card)
			added++
			result.NewVideos++
		}
		if added > 0 {
			if err := snapshot.WriteJSONAtomic(v.path, videos); err != nil {
				return result, fmt.Errorf("write videos: %w", err)
			}
		}
		slog.Info("video round",
			slog.Int("round", result.Scrolls+1),
			slog.Int("cards", len(cards)),
			slog.Int("added", added),
			slog.Int("new", result.NewVideos),
			slog.Int("total", len(videos)),
		)

		if result.NewVideos >= v.cfg.VideoMaxNew {
			result.StopReason = StopVideoLimit
			break
		}
		if result.Scrolls >= v.cfg.VideoMaxScrolls {
			result.StopReason = StopMaxScrolls
			break
		}

		grew, err := v.scroll(ctx)
		if err == nil && !grew && added == 0 {
			result.StopReason = StopNoMoreContent
			break
		}
		if err == nil {
			result.Scrolls++
			body, err = v.feed.Document(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				result.StopReason = StopCanceled
				break
			}
			slog.Warn("video feed scroll failed", slog.String("kind", string(scraper.KindOf(err))), slog.Any("error", err))
			result.StopReason = StopScrollFailed
			break
		}
	}

	result.TotalVideos = len(videos)
	logStats("video crawl finished", v.controller.Stats())
	slog.Info("video crawl summary",
		slog.String("stop_reason", result.StopReason),
		slog.Int("new_videos", result.NewVideos),
		slog.Int("total_videos", result.TotalVideos),
		slog.Int("scrolls", result.Scrolls),
		slog.Int("dropped_cards", result.DroppedCards),
	)
	return result, ctx.Err()
}

// scroll moves the feed down and reports whether the page grew after the wait.
func (v *VideoCampaign) scroll(ctx context.Context) (bool, error) {
	before, err := v.feed.Height(ctx)
	if err != nil {
		return false, err
	}
	if err := v.feed.ScrollBy(ctx, v.cfg.VideoScrollDistance); err != nil {
		return false, err
	}
	if err := v.pause(ctx, v.cfg.VideoScrollWait); err != nil {
		return false, err
	}
	after, err := v.feed.Height(ctx)
	if err != nil {
		return false, err
	}
	return after > before, nil
}

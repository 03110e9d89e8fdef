package models

import "time"

// Video is one card of the video site's home feed. BvID is the stable key.
type Video struct {
	BvID           string    `json:"bvId"`
	Timestamp      time.Time `json:"timestamp"`
	VideoURL       string    `json:"videoUrl"`
	Title          string    `json:"title"`
	CoverURL       string    `json:"coverUrl,omitempty"`
	PlayCount      string    `json:"playCount,omitempty"`
	Duration       string    `json:"duration,omitempty"`
	Author         string    `json:"author,omitempty"`
	AuthorSpaceURL string    `json:"authorSpaceUrl,omitempty"`
	PublishDate    string    `json:"publishDate,omitempty"`
}

// VideoRunResult summarizes one video feed crawl.
type VideoRunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Scrolls      int
	NewVideos    int
	TotalVideos  int
	DroppedCards int
	StopReason   string
	Stats        FetchStats
}

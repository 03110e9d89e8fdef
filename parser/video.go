package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/steamfetch/models"
)

const videoCardSelector = ".bili-video-card__wrap"

var bvIDPattern = regexp.MustCompile(`/video/(BV[a-zA-Z0-9]+)`)

// ParseVideoCards extracts feed cards in document order. Links are resolved
// against base. Cards without a video id (ads, live rooms) are counted in
// dropped and left out.
func ParseVideoCards(body []byte, base string, now time.Time) (videos []models.Video, dropped int, err error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, 0, fmt.Errorf("parse feed url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse video feed: %w", err)
	}

	doc.Find(videoCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Find(".bili-video-card__image--link, .bili-video-card__info--tit a").First().Attr("href")
		videoURL := resolveLink(baseURL, href)
		match := bvIDPattern.FindStringSubmatch(videoURL)
		if match == nil {
			dropped++
			return
		}

		title := card.Find(".bili-video-card__info--tit a").First()
		if title.Length() == 0 {
			title = card.Find(".bili-video-card__info--tit").First()
		}

		var cover string
		card.Find(".bili-video-card__cover source").Each(func(_ int, source *goquery.Selection) {
			srcset := strings.TrimSpace(source.AttrOr("srcset", ""))
			if strings.HasSuffix(srcset, ".webp") || strings.HasSuffix(srcset, ".png") {
				cover = resolveLink(baseURL, srcset)
			}
		})

		space, _ := card.Find(".bili-video-card__info--owner").First().Attr("href")
		date := strings.ReplaceAll(textOf(card, ".bili-video-card__info--date"), "·", "")

		videos = append(videos, models.Video{
			BvID:           match[1],
			Timestamp:      now,
			VideoURL:       videoURL,
			Title:          NormalizeName(title.Text()),
			CoverURL:       cover,
			PlayCount:      textOf(card, ".bili-video-card__stats--text"),
			Duration:       textOf(card, ".bili-video-card__stats__duration"),
			Author:         textOf(card, ".bili-video-card__info--author"),
			AuthorSpaceURL: resolveLink(baseURL, space),
			PublishDate:    strings.TrimSpace(date),
		})
	})
	return videos, dropped, nil
}

func textOf(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// resolveLink makes protocol-relative and relative hrefs absolute.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

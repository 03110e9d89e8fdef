package pricing

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/aluiziolira/steamfetch/scraper"
)

// restyFetcher performs single attempts for the backoff controller.
type restyFetcher struct {
	client   *resty.Client
	identity *scraper.Identity
}

func (f *restyFetcher) Fetch(ctx context.Context, target scraper.Target) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(f.identity.Headers(target.ExpectJSON)).
		Get(target.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, scraper.ClassifyError(err)
	}
	return scraper.Classify(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body(), target.ExpectJSON)
}

func (f *restyFetcher) Rewarm(context.Context) error {
	f.identity.Reset()
	return nil
}

func (f *restyFetcher) Close() error {
	return nil
}

package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-errors/errors"

	"github.com/iqoption/crashcollector/common/format/minidump"
)

// Crashes fetches the crash log of the collector c.URL points to.
func (c *Client) Crashes(ctx context.Context) ([]minidump.Report, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	u.Path = "/crashes"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("list crashes: %s", resp.Status)
	}

	var reports []minidump.Report
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return reports, nil
}

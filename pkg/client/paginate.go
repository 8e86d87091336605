package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// FetchAll requests path page by page and concatenates the arrays found
// under resultKey, in page order.
//
// A "pageSize" parameter is added when base does not carry one; a pageSize
// in base must be a positive integer. Paging stops
// at the first page that is empty or shorter than the page size. Any error
// aborts the walk and is returned as is; in particular a *RateLimitedError
// is never retried here.
func (c *Client) FetchAll(ctx context.Context, path string, base Params, resultKey string) ([]json.RawMessage, error) {
	params := base.Clone()
	size := c.pageSize
	if v, ok := params.Get("pageSize"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid pageSize %q", path, v)
		}
		size = n
	} else {
		params.Add("pageSize", strconv.Itoa(size))
	}

	var all []json.RawMessage
	for page := 1; ; page++ {
		if c.maxPages > 0 && page > c.maxPages {
			return nil, fmt.Errorf("%s: %w after %d pages", path, ErrPageLimit, c.maxPages)
		}

		body, err := c.Get(ctx, path, params.With("page", strconv.Itoa(page)))
		if err != nil {
			return nil, err
		}

		items, err := decodeItems(path, body, resultKey)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		if len(items) < size {
			break
		}
	}
	return all, nil
}

// decodeItems extracts the array under key. A missing key or a null value
// is an empty page; anything else that is not an array is a ParseError.
func decodeItems(path string, body []byte, key string) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("expected JSON object: %w", err)}
	}
	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("%q is not an array: %w", key, err)}
	}
	return items, nil
}

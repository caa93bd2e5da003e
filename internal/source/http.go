package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/rows"
)

// maxConcurrentRequests bounds the fan-out over a multi-URL source.
const maxConcurrentRequests = 8

const formContentType = "application/x-www-form-urlencoded"

var methods = map[string]string{
	"get":    http.MethodGet,
	"post":   http.MethodPost,
	"put":    http.MethodPut,
	"delete": http.MethodDelete,
}

// fetchHTTP requests every URL of the source concurrently and concatenates
// the decoded rows in URL order.
func fetchHTTP(ctx context.Context, client *Client, logger *slog.Logger, h *manifest.HTTPSource) ([]rows.Row, error) {
	if len(h.URL) == 0 {
		return nil, fmt.Errorf(`property "url" is required for an http source`)
	}
	method := http.MethodGet
	if h.Method != "" {
		m, ok := methods[strings.ToLower(h.Method)]
		if !ok {
			return nil, fmt.Errorf("unsupported http method %q (expected get, post, put or delete)", h.Method)
		}
		method = m
	}
	format := strings.ToLower(h.ResponseType)
	if format != manifest.FormatCSV && format != manifest.FormatJSON {
		return nil, fmt.Errorf(`property "responseType" must be either csv or json`)
	}

	body, headers, err := encodeBody(method, h)
	if err != nil {
		return nil, err
	}

	targets := make([]string, len(h.URL))
	for i, raw := range h.URL {
		if targets[i], err = buildURL(raw, h.Params); err != nil {
			return nil, err
		}
	}

	results := make([][]rows.Row, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for i, target := range targets {
		g.Go(func() error {
			resp, err := client.Do(gctx, method, target, body, headers)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			decoded, err := decode(format, resp.Body)
			if err != nil {
				return fmt.Errorf("%s %s: %w", method, target, err)
			}
			logger.Debug("fetched", slog.String("method", method), slog.String("url", target), slog.Int("rows", len(decoded)))
			results[i] = decoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []rows.Row
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// buildURL substitutes :name path segments from params; params not used in
// the path are sent as query parameters.
func buildURL(raw string, params map[string]string) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Longest first so :id does not clobber :idx.
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})

	query := url.Values{}
	for _, k := range keys {
		placeholder := ":" + k
		if strings.Contains(raw, placeholder) {
			raw = strings.ReplaceAll(raw, placeholder, url.PathEscape(params[k]))
			continue
		}
		query.Set(k, params[k])
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody renders the request body: form encoded when the Content-Type
// header asks for it, JSON otherwise. GET requests carry no body.
func encodeBody(method string, h *manifest.HTTPSource) ([]byte, http.Header, error) {
	headers := http.Header{}
	for k, v := range h.Headers {
		headers.Set(k, v)
	}
	if len(h.Body) == 0 || method == http.MethodGet {
		return nil, headers, nil
	}

	if strings.HasPrefix(headers.Get("Content-Type"), formContentType) {
		form := url.Values{}
		for k, v := range h.Body {
			form.Set(k, v)
		}
		return []byte(form.Encode()), headers, nil
	}

	data, err := json.Marshal(h.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	return data, headers, nil
}

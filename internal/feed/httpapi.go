package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/partsform/syncengine/internal/entity"
)

// httpClient implements Test/List (Client, for the control-plane "test
// connection" and estimated-count check) and FetchAllRecords
// (RecordFetcher, the real data path) for HTTP-API feeds.
type httpClient struct {
	cfg     *entity.APIConfig
	http    *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(cfg *entity.APIConfig) *httpClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: newLimiter(cfg.RateLimitRPS),
	}
}

func (c *httpClient) applyAuth(req *http.Request) {
	switch c.cfg.AuthType {
	case entity.AuthTypeAPIKey:
		header := c.cfg.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, c.cfg.Secret)
	case entity.AuthTypeBasic:
		user, pass, _ := strings.Cut(c.cfg.Secret, ":")
		req.SetBasicAuth(user, pass)
	case entity.AuthTypeBearer:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
	case entity.AuthTypeOAuth2ClientCredentials:
		// Token acquisition is out of scope here; Secret already holds a
		// pre-fetched bearer token refreshed by the caller.
		req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
	case entity.AuthTypeNone:
	}
}

func (c *httpClient) endpoint() string {
	if len(c.cfg.Endpoints) == 0 {
		return c.cfg.BaseURL
	}
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return base + "/" + strings.TrimLeft(c.cfg.Endpoints[0], "/")
}

func (c *httpClient) Test(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), nil)
	if err != nil {
		return entity.NewFeedError(entity.FeedErrorConfig, err)
	}
	c.applyAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return entity.NewFeedError(entity.FeedErrorAuth, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return entity.NewFeedError(entity.FeedErrorUnreachable, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// List issues the first-page request and reports the estimated record
// count as a single synthetic FileRef (spec.md §4.1 "API — issue the
// configured list or first-page request").
func (c *httpClient) List(ctx context.Context) ([]FileRef, error) {
	page, _, err := c.fetchPage(ctx, c.firstPageRequest())
	if err != nil {
		return nil, err
	}
	return []FileRef{{Name: c.endpoint(), Size: int64(len(page))}}, nil
}

type pageRequest struct {
	page   int
	offset int
	cursor string
	url    string // full override for link-header pagination
}

func (c *httpClient) firstPageRequest() pageRequest {
	return pageRequest{page: 1, offset: 0}
}

// buildRequest renders pr into a concrete HTTP request per the
// configured PaginationKind.
func (c *httpClient) buildRequest(ctx context.Context, pr pageRequest) (*http.Request, error) {
	if pr.url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pr.url, nil)
		if err != nil {
			return nil, err
		}
		c.applyAuth(req)
		return req, nil
	}

	u, err := url.Parse(c.endpoint())
	if err != nil {
		return nil, err
	}
	q := u.Query()

	limit := c.cfg.Pagination.LimitPerPage
	if limit <= 0 {
		limit = 100
	}

	switch c.cfg.Pagination.Kind {
	case entity.PaginationPage:
		param := c.cfg.Pagination.PageParam
		if param == "" {
			param = "page"
		}
		q.Set(param, strconv.Itoa(pr.page))
	case entity.PaginationOffset:
		offsetParam := c.cfg.Pagination.OffsetParam
		if offsetParam == "" {
			offsetParam = "offset"
		}
		limitParam := c.cfg.Pagination.LimitParam
		if limitParam == "" {
			limitParam = "limit"
		}
		q.Set(offsetParam, strconv.Itoa(pr.offset))
		q.Set(limitParam, strconv.Itoa(limit))
	case entity.PaginationCursor:
		if pr.cursor != "" {
			param := c.cfg.Pagination.CursorParam
			if param == "" {
				param = "cursor"
			}
			q.Set(param, pr.cursor)
		}
	case entity.PaginationLinkHeader, entity.PaginationNone:
		// no query params to add on the first request
	}

	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.applyAuth(req)
	return req, nil
}

// fetchPage performs one rate-limited, retried HTTP round trip and
// returns the projected records plus the next page request, or a nil
// next request when exhausted.
func (c *httpClient) fetchPage(ctx context.Context, pr pageRequest) ([]RawRecord, *pageRequest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, entity.NewFeedError(entity.FeedErrorTimeout, err)
	}

	var body []byte
	var respHeader http.Header
	var statusCode int

	op := func() error {
		req, err := c.buildRequest(ctx, pr)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err // network error: retryable
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		respHeader = resp.Header

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return err
		}
		body = buf.Bytes()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("transient status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(entity.NewFeedError(entity.FeedErrorAuth, fmt.Errorf("status %d", resp.StatusCode)))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(entity.NewFeedError(entity.FeedErrorUnreachable, fmt.Errorf("status %d", resp.StatusCode)))
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		var feedErr *entity.FeedError
		if fe, ok := err.(*entity.FeedError); ok {
			feedErr = fe
		} else {
			feedErr = entity.NewFeedError(entity.FeedErrorUnreachable, err)
		}
		return nil, nil, feedErr
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, entity.NewFeedError(entity.FeedErrorUnreachable, fmt.Errorf("decode response: %w", err))
	}

	rawRows := projectDataPath(payload, c.cfg.DataPath)
	records := make([]RawRecord, 0, len(rawRows))
	for _, row := range rawRows {
		records = append(records, mapFields(row, c.cfg.FieldMapping))
	}

	next := c.nextPageRequest(pr, len(rawRows), payload, respHeader, statusCode)
	return records, next, nil
}

// nextPageRequest computes the following page's request, or nil when
// the feed is exhausted, per the configured PaginationKind.
func (c *httpClient) nextPageRequest(pr pageRequest, rowCount int, payload interface{}, header http.Header, statusCode int) *pageRequest {
	if statusCode >= 400 {
		return nil
	}

	limit := c.cfg.Pagination.LimitPerPage
	if limit <= 0 {
		limit = 100
	}

	switch c.cfg.Pagination.Kind {
	case entity.PaginationNone:
		return nil
	case entity.PaginationPage:
		if rowCount == 0 {
			return nil
		}
		return &pageRequest{page: pr.page + 1}
	case entity.PaginationOffset:
		if rowCount < limit {
			return nil
		}
		return &pageRequest{offset: pr.offset + limit}
	case entity.PaginationCursor:
		cursor := dotPathString(payload, c.cfg.Pagination.CursorBodyPath)
		if cursor == "" {
			return nil
		}
		return &pageRequest{cursor: cursor}
	case entity.PaginationLinkHeader:
		next := parseNextLink(header.Get("Link"))
		if next == "" {
			return nil
		}
		return &pageRequest{url: next}
	default:
		return nil
	}
}

// FetchAllRecords walks every page until exhaustion, invoking onBatch
// per page and onProgress with the running total.
func (c *httpClient) FetchAllRecords(ctx context.Context, onProgress func(fetched int), onBatch func(batch []RawRecord) error) error {
	pr := c.firstPageRequest()
	fetched := 0

	for {
		records, next, err := c.fetchPage(ctx, pr)
		if err != nil {
			return err
		}

		if len(records) > 0 {
			if err := onBatch(records); err != nil {
				return err
			}
			fetched += len(records)
			if onProgress != nil {
				onProgress(fetched)
			}
		}

		if next == nil {
			return nil
		}
		pr = *next
	}
}

// projectDataPath walks dotPath (e.g. "data.items") through payload
// and returns the array found there as []interface{}, or a
// single-element slice of payload itself when dotPath is empty and
// payload is not already an array.
func projectDataPath(payload interface{}, dotPath string) []interface{} {
	node := payload
	if dotPath != "" {
		for _, part := range strings.Split(dotPath, ".") {
			m, ok := node.(map[string]interface{})
			if !ok {
				return nil
			}
			node = m[part]
		}
	}
	if arr, ok := node.([]interface{}); ok {
		return arr
	}
	if node == nil {
		return nil
	}
	return []interface{}{node}
}

// mapFields projects a source row's fields (dot-path keyed) onto the
// canonical field names in fieldMapping, stringifying values so the
// downstream validation/normalization the Parser applies to file feeds
// applies uniformly here too.
func mapFields(row interface{}, fieldMapping map[string]string) RawRecord {
	out := make(RawRecord, len(fieldMapping))
	for canonical, sourcePath := range fieldMapping {
		out[canonical] = dotPathString(row, sourcePath)
	}
	return out
}

func dotPathString(node interface{}, dotPath string) string {
	if dotPath == "" {
		return stringify(node)
	}
	cur := node
	for _, part := range strings.Split(dotPath, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		cur = m[part]
	}
	return stringify(cur)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// parseNextLink extracts the rel="next" target from an RFC 5988 Link header.
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
			continue
		}
		for _, attr := range segments[1:] {
			attr = strings.TrimSpace(attr)
			if attr == `rel="next"` || attr == "rel=next" {
				return strings.Trim(urlPart, "<>")
			}
		}
	}
	return ""
}

package forms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	maxResponseLen = 1024 * 1024 // 1MB
	defaultTimeout = 15 * time.Second

	categoryCount  = "count"
	categoryResult = "get_result"
)

var (
	ErrNotConfigured    = errors.New("form web app URL is not configured")
	ErrInvalidResponse  = errors.New("form web app returned invalid JSON")
	ErrResponseTooLarge = errors.New("form web app response too large")
)

// RemoteError is an error reported by the form web app in its "error" field.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Form is a form whose name matched a query.
type Form struct {
	Name          string
	ResponseCount int64
}

// AnswerCount is the number of responses that gave Answer to a question.
type AnswerCount struct {
	Answer string
	Count  int64
}

// Client queries the form web app. Identical concurrent queries share one request.
type Client struct {
	baseURL string
	http    *http.Client
	group   singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Count returns the forms whose name contains formName and their response counts.
func (c *Client) Count(ctx context.Context, formName string) ([]Form, error) {
	body, err := c.fetch(ctx, url.Values{
		"formName": {formName},
		"category": {categoryCount},
	})
	if err != nil {
		return nil, err
	}

	var forms []Form
	gjson.GetBytes(body, "matchingForms").ForEach(func(_, form gjson.Result) bool {
		forms = append(forms, Form{
			Name:          form.Get("name").String(),
			ResponseCount: form.Get("responseCount").Int(),
		})
		return true
	})
	return forms, nil
}

// Result returns the answer counts for question on the form matching formName,
// in the order the web app lists them.
func (c *Client) Result(ctx context.Context, formName, question string) ([]AnswerCount, error) {
	body, err := c.fetch(ctx, url.Values{
		"formName":      {formName},
		"responseQuery": {question},
		"category":      {categoryResult},
	})
	if err != nil {
		return nil, err
	}

	var counts []AnswerCount
	gjson.GetBytes(body, "counts").ForEach(func(answer, count gjson.Result) bool {
		counts = append(counts, AnswerCount{Answer: answer.String(), Count: count.Int()})
		return true
	})
	return counts, nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	key := params.Encode()
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.get(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid form web app URL: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "schedbot/0.1")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query form web app: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("form web app: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseLen {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseLen)
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidResponse
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() && msg.String() != "" {
		return nil, &RemoteError{Message: msg.String()}
	}
	return body, nil
}

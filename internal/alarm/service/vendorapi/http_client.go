package vendorapi

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
)

// httpClient is the shared JSON-over-HTTP plumbing behind the per-vendor
// rule clients. The gateway endpoint signs and forwards requests to the
// vendor OpenAPI; this wrapper only speaks the gateway's envelope.
type httpClient struct {
	base   string
	cred   Credential
	client *http.Client
}

func newHTTPClient(base string, cred Credential, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		base:   strings.TrimSuffix(base, "/"),
		cred:   cred,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *httpClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bs)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", h.cred.AccessKey)
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vendor api status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPAliyunClient implements AliyunRuleClient against the alarm gateway.
type HTTPAliyunClient struct {
	h *httpClient
}

func NewHTTPAliyunClient(base string, cred Credential, timeout time.Duration) *HTTPAliyunClient {
	return &HTTPAliyunClient{h: newHTTPClient(base, cred, timeout)}
}

type aliyunListResp struct {
	Rules []AliyunRule `json:"rules"`
	Total int          `json:"total"`
}

func (c *HTTPAliyunClient) ListRules(ctx context.Context, namespace string, page, pageSize int) ([]AliyunRule, int, error) {
	path := "/aliyun/rules?namespace=" + url.QueryEscape(namespace) +
		"&page=" + strconv.Itoa(page) + "&pageSize=" + strconv.Itoa(pageSize)
	var resp aliyunListResp
	if err := c.h.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Rules, resp.Total, nil
}

func (c *HTTPAliyunClient) CreateRule(ctx context.Context, r *AliyunRule) (*OpResult, error) {
	var res OpResult
	if err := c.h.doJSON(ctx, http.MethodPost, "/aliyun/rules", r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPAliyunClient) UpdateRule(ctx context.Context, ruleID string, r *AliyunRule) (*OpResult, error) {
	var res OpResult
	if err := c.h.doJSON(ctx, http.MethodPut, "/aliyun/rules/"+url.PathEscape(ruleID), r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPAliyunClient) DeleteRules(ctx context.Context, ruleIDs []string) (*OpResult, error) {
	var res OpResult
	body := map[string][]string{"ruleIds": ruleIDs}
	if err := c.h.doJSON(ctx, http.MethodDelete, "/aliyun/rules", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// HTTPVolcClient implements VolcRuleClient against the alarm gateway.
type HTTPVolcClient struct {
	h *httpClient
}

func NewHTTPVolcClient(base string, cred Credential, timeout time.Duration) *HTTPVolcClient {
	return &HTTPVolcClient{h: newHTTPClient(base, cred, timeout)}
}

type volcListResp struct {
	Rules []VolcRule `json:"rules"`
	Total int        `json:"total"`
}

func (c *HTTPVolcClient) ListRules(ctx context.Context, namespace string, pageNum, pageSize int) ([]VolcRule, int, error) {
	path := "/volcengine/rules?namespace=" + url.QueryEscape(namespace) +
		"&pageNumber=" + strconv.Itoa(pageNum) + "&pageSize=" + strconv.Itoa(pageSize)
	var resp volcListResp
	if err := c.h.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Rules, resp.Total, nil
}

func (c *HTTPVolcClient) CreateRule(ctx context.Context, r *VolcRule) (*OpResult, error) {
	var res OpResult
	if err := c.h.doJSON(ctx, http.MethodPost, "/volcengine/rules", r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPVolcClient) UpdateRule(ctx context.Context, ruleID string, r *VolcRule) (*OpResult, error) {
	var res OpResult
	if err := c.h.doJSON(ctx, http.MethodPut, "/volcengine/rules/"+url.PathEscape(ruleID), r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPVolcClient) DeleteRules(ctx context.Context, ruleIDs []string) (*OpResult, error) {
	var res OpResult
	body := map[string][]string{"ruleIds": ruleIDs}
	if err := c.h.doJSON(ctx, http.MethodDelete, "/volcengine/rules", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Package api holds the outbound client for the external account provider,
// used to verify that a hub user has linked a game identity before queueing.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"valorant-hub/internal/config"

	"github.com/valyala/fasthttp"
)

type AccountClient struct {
	apiKey      string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     int       `json:"reset"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AccountResponse struct {
	Status int `json:"status"`
	Data   struct {
		Puuid  string `json:"puuid"`
		Name   string `json:"name"`
		Tag    string `json:"tag"`
		Region string `json:"region"`
	} `json:"data"`
}

func NewAccountClient(cfg *config.Config) *AccountClient {
	return &AccountClient{
		apiKey: cfg.AccountAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     90,
			Remaining: 90,
			Reset:     60,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *AccountClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

// HasLinkedAccount checks the queue-join precondition: the user has a linked
// game identity. With no API key configured the check is skipped, so local
// and test setups work without credentials.
func (c *AccountClient) HasLinkedAccount(ctx context.Context, name, tag string) (bool, error) {
	if c.apiKey == "" {
		return true, nil
	}
	if name == "" || tag == "" {
		return false, nil
	}

	endpoint := fmt.Sprintf("https://api.henrikdev.xyz/valorant/v2/account/%s/%s",
		url.PathEscape(name), url.PathEscape(tag))

	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return false, err
	}

	var account AccountResponse
	if err := json.Unmarshal(resp, &account); err != nil {
		return false, fmt.Errorf("failed to decode account response: %w", err)
	}
	return account.Data.Puuid != "", nil
}

func (c *AccountClient) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", c.apiKey)

	deadline, ok := ctx.Deadline()
	var err error
	if ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("account request failed: %w", err)
	}

	c.updateRateLimit(resp)

	if resp.StatusCode() == fasthttp.StatusNotFound {
		return nil, fmt.Errorf("account not found")
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("account request returned status %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (c *AccountClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultEndpoint = "https://onesignal.com/api/v1/notifications"

// Client submits batched push notifications to OneSignal.
type Client struct {
	appID    string
	apiKey   string
	endpoint string
	http     *http.Client
	maxRetry time.Duration
}

// Config for the OneSignal client.
type Config struct {
	AppID    string
	APIKey   string
	Endpoint string        // defaults to the OneSignal REST endpoint
	Timeout  time.Duration // per-request timeout
	MaxRetry time.Duration // total time budget for retries, 0 disables them
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		appID:    cfg.AppID,
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		maxRetry: cfg.MaxRetry,
	}
}

// LoadConfigFromEnv reads the OneSignal credentials from the environment.
func LoadConfigFromEnv() (Config, error) {
	appID := os.Getenv("ONE_SIGNAL_APP_ID")
	apiKey := os.Getenv("ONE_SIGNAL_REST_API_KEY")
	if appID == "" || apiKey == "" {
		return Config{}, fmt.Errorf("ONE_SIGNAL_APP_ID and ONE_SIGNAL_REST_API_KEY are required")
	}
	return Config{AppID: appID, APIKey: apiKey, MaxRetry: 30 * time.Second}, nil
}

type notificationRequest struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids"`
	Contents         map[string]string `json:"contents"`
	Name             string            `json:"name"`
}

// Send submits one batched notification to every token in playerIDs.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff inside the configured budget; 4xx responses are not retried.
func (c *Client) Send(ctx context.Context, playerIDs []string, contents map[string]string, name string) error {
	if len(playerIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(notificationRequest{
		AppID:            c.appID,
		IncludePlayerIDs: playerIDs,
		Contents:         contents,
		Name:             name,
	})
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Basic "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("onesignal: status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("onesignal: status %d", resp.StatusCode))
		}
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxRetry > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = c.maxRetry
		b = eb
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

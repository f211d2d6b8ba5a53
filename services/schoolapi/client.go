package schoolapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/school"
)

const validateLoginPath = "/validateLoginOptimized"

type (
	// DeviceKeySource provides the per-install device key sent with every request.
	DeviceKeySource interface {
		DeviceKey(ctx context.Context) (string, error)
	}

	// Client talks to the content/auth endpoint, trying the secure host before the plain one.
	Client struct {
		http    *resty.Client
		hosts   []string
		conf    core.APIConfig
		devices DeviceKeySource
		logger  core.Logger
	}
)

var _ school.Backend = (*Client)(nil)

func NewClient(conf core.APIConfig, devices DeviceKeySource, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NopLogger{}
	}
	httpClient := resty.New().
		SetTimeout(conf.Timeout).
		SetRetryCount(conf.RetryCount).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	hosts := make([]string, 0, 2)
	for _, host := range []string{conf.SecureBaseURL, conf.PlainBaseURL} {
		if host = strings.TrimRight(host, "/"); host != "" {
			hosts = append(hosts, host)
		}
	}
	return &Client{
		http:    httpClient,
		hosts:   hosts,
		conf:    conf,
		devices: devices,
		logger:  logger,
	}
}

// Probe succeeds as soon as one host gives any HTTP answer. Each host gets its own probe timeout.
func (c *Client) Probe(ctx context.Context) error {
	var lastErr error
	for _, host := range c.hosts {
		err := c.probe(ctx, host)
		if err == nil {
			return nil
		}
		c.logger.Debug("probing backend host", err, map[string]interface{}{"host": host})
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no backend host configured")
	}
	return core.AsNetworkError(lastErr)
}

func (c *Client) probe(ctx context.Context, host string) error {
	ctx, cancel := withTimeout(ctx, c.conf.ProbeTimeout)
	defer cancel()

	_, err := c.http.R().SetContext(ctx).Head(host)
	return err
}

// ValidateLogin posts `req` to each host in turn; the first host that answers with a
// decodable 2xx response wins. Each host gets its own timeout.
func (c *Client) ValidateLogin(ctx context.Context, req school.LoginRequest) (*school.LoginResponse, error) {
	c.fillMetadata(ctx, &req)

	var lastErr error
	for _, host := range c.hosts {
		resp, err := c.validateLogin(ctx, host, req)
		if err == nil {
			return resp, nil
		}
		c.logger.Warn("validating login", err, map[string]interface{}{"host": host, "username": req.UserName})
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = core.NewNetworkError(errors.New("no backend host configured"), false)
	}
	return nil, lastErr
}

func (c *Client) validateLogin(ctx context.Context, host string, req school.LoginRequest) (*school.LoginResponse, error) {
	ctx, cancel := withTimeout(ctx, c.conf.Timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(host + validateLoginPath)
	if err != nil {
		return nil, core.AsNetworkError(err)
	}
	if resp.IsError() {
		return nil, core.NewServerError(http.StatusText(resp.StatusCode()), resp.StatusCode())
	}

	var out school.LoginResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, core.NewServerError(errors.Wrap(err, "decoding validateLogin response").Error(), resp.StatusCode())
	}
	return &out, nil
}

func (c *Client) fillMetadata(ctx context.Context, req *school.LoginRequest) {
	if req.AppVersion == "" {
		req.AppVersion = c.conf.AppVersion
	}
	if req.DeviceType == "" {
		req.DeviceType = c.conf.DeviceType
	}
	if req.Source == "" {
		req.Source = c.conf.Source
	}
	if req.DeviceKey == "" && c.devices != nil {
		key, err := c.devices.DeviceKey(ctx)
		if err != nil {
			c.logger.Warn("getting device key", err)
		}
		req.DeviceKey = key
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
)

// Client wraps the Zeebe gRPC client with retry on transient broker errors.
type Client struct {
	zb     zbc.Client
	retry  RetryConfig
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// RetryConfig bounds the exponential backoff used by ExecuteWithRetry.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// Connect dials the broker and checks the topology before returning.
func Connect(ctx context.Context, cfg config.CamundaConfig, log logger.Logger) (*Client, error) {
	zb, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.RequestTimeout))
	defer cancel()
	if _, err := zb.NewTopologyCommand().Send(ctx); err != nil {
		zb.Close()
		return nil, fmt.Errorf("connect to zeebe broker at %s: %w", cfg.BrokerAddress, err)
	}

	return NewClient(zb, DefaultRetryConfig, log), nil
}

func NewClient(zb zbc.Client, retry RetryConfig, log logger.Logger) *Client {
	return &Client{
		zb:     zb,
		retry:  retry,
		logger: log.WithFields(map[string]interface{}{"component": "zeebe-client"}),
		sleep:  sleepCtx,
	}
}

// Zeebe returns the raw client for job worker registration.
func (c *Client) Zeebe() zbc.Client {
	return c.zb
}

func (c *Client) Close() error {
	return c.zb.Close()
}

// CreateProcessInstance starts the latest deployed version of processID.
func (c *Client) CreateProcessInstance(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	var key int64
	err := c.ExecuteWithRetry(ctx, "create-instance:"+processID, func(ctx context.Context) error {
		cmd, err := c.zb.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromMap(variables)
		if err != nil {
			return err
		}
		resp, err := cmd.Send(ctx)
		if err != nil {
			return err
		}
		key = resp.GetProcessInstanceKey()
		return nil
	})
	return key, err
}

// ExecuteWithRetry runs command until it succeeds, fails with a non-transient
// error, or the retry budget is spent. Delays double from BaseDelay up to MaxDelay.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation string, command func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := command(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt >= c.retry.MaxRetries {
			return mapZeebeError(err, operation, attempt)
		}

		delay := c.retry.BaseDelay * time.Duration(1<<attempt)
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
		c.logger.Warn("Zeebe command failed, retrying", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
			"error":     err.Error(),
		})
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, err)
		}
	}
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.zb.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
	"resource_exhausted",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempt int) error {
	msg := fmt.Sprintf("zeebe %s", operation)
	if attempt > 0 {
		msg += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(lower, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

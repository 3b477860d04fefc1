package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

type Pushover struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
	user     string
	token    string
	device   string

	wg sync.WaitGroup
}

func NewPushover(logger *zap.Logger, user, token, device string) *Pushover {
	return &Pushover{
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: pushoverEndpoint,
		user:     user,
		token:    token,
		device:   device,
	}
}

// SetEndpoint overrides the pushover messages url.
func (p *Pushover) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

// Wait blocks until all in-flight notifications are delivered or failed.
func (p *Pushover) Wait() {
	p.wg.Wait()
}

func (p *Pushover) WithOrderClosed(handler bus.OrderCloseEventHandler) bus.OrderCloseEventHandler {
	return func(ctx context.Context, order common.Order) {
		msg := fmt.Sprintf("id = %d\nside = %s\nfilled = %s\nfees = %s",
			order.Id, order.Side, order.FilledSize.String(), order.FeesPaid.String())
		p.notify(ctx, "Order Closed", msg)
		handler(ctx, order)
	}
}

func (p *Pushover) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		msg := fmt.Sprintf("side = %s\nsize = %s\nreason = %s",
			rejected.Request.Side, rejected.Request.Size.String(), rejected.Reason)
		p.notify(ctx, "Order Rejected", msg)
		handler(ctx, rejected)
	}
}

func (p *Pushover) notify(ctx context.Context, title, message string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.send(context.WithoutCancel(ctx), title, message); err != nil {
			p.logger.Error("unable to send pushover notification", zap.Error(err))
		}
	}()
}

func (p *Pushover) send(ctx context.Context, title, message string) error {
	data := url.Values{}
	data.Set("token", p.token)
	data.Set("user", p.user)
	data.Set("device", p.device)
	data.Set("title", title)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover post failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover error: %s", body)
	}

	return nil
}

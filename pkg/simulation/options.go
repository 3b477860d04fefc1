package simulation

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/exchange/sandbox"
)

type Option func(*Engine)

func WithRouter(router *bus.Router) Option {
	return func(e *Engine) {
		e.router = router
	}
}

func WithAccountOptions(options ...sandbox.Option) Option {
	return func(e *Engine) {
		e.accountOptions = append(e.accountOptions, options...)
	}
}

func WithWaitTime(wait time.Duration) Option {
	return func(e *Engine) {
		e.waitTime = wait
	}
}

func WithAuditInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.auditInterval = interval
		}
	}
}

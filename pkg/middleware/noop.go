package middleware

import (
	"context"

	"github.com/peter-kozarec/vexchange/pkg/common"
)

//goland:noinspection ALL
var (
	NoopSnapshotHdl  = func(context.Context, common.Snapshot) {}
	NoopOrderHdl     = func(context.Context, common.Order) {}
	NoopOrderRjctHdl = func(context.Context, common.OrderRejected) {}
	NoopOrderClsHdl  = func(context.Context, common.Order) {}
	NoopFillHdl      = func(context.Context, common.Fill) {}
	NoopBalanceHdl   = func(context.Context, common.BalanceSheet) {}
)

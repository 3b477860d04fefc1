package middleware

import (
	"go.uber.org/zap/zapcore"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type balanceMarshaler common.Balance

func (b balanceMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("free", b.Free.String())
	enc.AddString("total", b.Total.String())
	enc.AddString("valuation", b.Valuation.String())
	return nil
}

func float(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}

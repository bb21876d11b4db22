package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAdjustment 单次调整的绝对值上限（小时）
var MaxAdjustment = decimal.NewFromInt(10000)

const (
	// 指数超出该区间时直接拒绝，避免比较时按指数放大系数
	maxAmountExp = 4
	minAmountExp = -12
	// 字面量长度上限
	maxAmountLiteral = 32
)

func init() {
	// 余额与金额按 JSON 数字输出
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidateAmount 非零、最多两位小数、不超过上限
func ValidateAmount(d decimal.Decimal) error {
	switch {
	case d.IsZero():
		return fmt.Errorf("%w: must be non-zero", ErrInvalidAmount)
	case d.Exponent() > maxAmountExp:
		return fmt.Errorf("%w: magnitude above %s", ErrInvalidAmount, MaxAdjustment)
	case d.Exponent() < minAmountExp:
		return fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	case !d.Equal(d.Truncate(2)):
		return fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	case d.Abs().GreaterThan(MaxAdjustment):
		return fmt.Errorf("%w: magnitude above %s", ErrInvalidAmount, MaxAdjustment)
	}
	return nil
}

// ParseAmount 只接受 JSON 数字字面量
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return decimal.Zero, fmt.Errorf("%w: not a number", ErrInvalidAmount)
	}
	n, ok := v.(json.Number)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: not a number", ErrInvalidAmount)
	}
	if len(n) > maxAmountLiteral {
		return decimal.Zero, fmt.Errorf("%w: number literal too long", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: not a number", ErrInvalidAmount)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

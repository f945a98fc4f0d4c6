package game

import (
	"github.com/wfunc/wager-game/internal/errors"
)

// checkedAdd 带溢出检查的无符号加法
func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, errors.Newf(errors.ErrArithmeticOverflow, "%d + %d", a, b)
	}
	return sum, nil
}

// checkedMul 带溢出检查的无符号乘法
func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, errors.Newf(errors.ErrArithmeticOverflow, "%d * %d", a, b)
	}
	return product, nil
}

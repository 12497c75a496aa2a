package util

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// 金额以最小单位（wei）的十进制字符串存取，全程走 big.Int 精确运算。
// 展示值（ETH）只做输出格式化，绝不回写存储。

// WeiDecimals 1 ETH = 10^18 wei 的缩放指数
const WeiDecimals = 18

// 2^256 的十进制表示是 78 位，超长的直接拒绝
const maxBaseUnitDigits = 78

// ParseBaseUnits 把字符串金额解析为最小单位的非负精确整数。
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if len(s) > maxBaseUnitDigits {
		return nil, fmt.Errorf("amount too large, max %d digits", maxBaseUnitDigits)
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return v, nil
}

// FormatDisplay 把最小单位金额转成人类可读的展示值（如 wei -> ETH）。
func FormatDisplay(v *big.Int) string {
	return decimal.NewFromBigInt(v, -WeiDecimals).String()
}

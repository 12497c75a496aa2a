package util

import (
	"fmt"
	"regexp"
	"strings"
)

// 支持两类收款地址：
//  1. 0x 开头的 20 字节十六进制（Ethereum 系）
//  2. base58 字母表、长度 26-50 的字符串（Bitcoin / Solana 等非 EVM 链）
// base58 这条分支比较宽松，只做字母表和长度检查，上线前应按链补充校验和验证。
var (
	hexAddressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	base58AddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{26,50}$`)
)

// ValidateAddress 校验收款地址格式。
// 0x 开头的地址必须是合法的 20 字节十六进制，不会落到 base58 分支。
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("address is empty")
	}

	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		if !hexAddressRe.MatchString(address) {
			return fmt.Errorf("invalid ethereum address format")
		}
		return nil
	}

	if !base58AddressRe.MatchString(address) {
		return fmt.Errorf("invalid address format")
	}
	return nil
}

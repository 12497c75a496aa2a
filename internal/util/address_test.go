package util

import (
	"testing"
)

// TestValidateAddress_Ethereum 测试合法的 0x 地址
func TestValidateAddress_Ethereum(t *testing.T) {
	testCases := []string{
		"0x1234567890abcdef1234567890abcdef12345678",
		"0xABCDEF1234567890abcdef1234567890ABCDEF12",
		"0x0000000000000000000000000000000000000000",
	}

	for _, addr := range testCases {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%q) error = %v, want nil", addr, err)
		}
	}
}

// TestValidateAddress_BadEthereum 0x 开头但格式错误的地址不能落到 base58 分支
func TestValidateAddress_BadEthereum(t *testing.T) {
	testCases := []string{
		"0x1234",                                      // 太短
		"0x1234567890abcdef1234567890abcdef123456789", // 41 位
		"0xZZ34567890abcdef1234567890abcdef12345678",  // 非法字符
	}

	for _, addr := range testCases {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%q) error = nil, want error", addr)
		}
	}
}

// TestValidateAddress_Base58 测试 base58 形式的非 EVM 地址
func TestValidateAddress_Base58(t *testing.T) {
	testCases := []string{
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",           // Bitcoin
		"4Nd1mYQx4t3rFRyjLok1rG5rG6p6p6p6p6p6p6p6p6p6", // Solana 风格
	}

	for _, addr := range testCases {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%q) error = %v, want nil", addr, err)
		}
	}
}

// TestValidateAddress_Invalid 测试空值、长度越界和非法字符
func TestValidateAddress_Invalid(t *testing.T) {
	testCases := []string{
		"",
		"abc",                         // 太短
		"0OIl0OIl0OIl0OIl0OIl0OIl0OIl", // base58 不含 0 O I l
		"hello world this is not an address at all",
	}

	for _, addr := range testCases {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%q) error = nil, want error", addr)
		}
	}
}

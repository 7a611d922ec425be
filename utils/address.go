package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// addressVersion WES P2PKH 地址版本字节（与节点侧 AddressManager 保持一致）
const addressVersion byte = 0x1C

const (
	// addressHashLen 地址哈希长度（HASH160）
	addressHashLen = 20
	// addressDecodedLen Base58Check 解码后长度：版本（1）+ 哈希（20）+ 校验和（4）
	addressDecodedLen = addressHashLen + 5
)

// addressChecksum 计算 Base58Check 校验和（双重 SHA256 取前 4 字节）
func addressChecksum(payload []byte) []byte {
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	return h2[:4]
}

// AddressBytesToBase58 将 20 字节地址哈希编码为 Base58Check 地址
//
// 编码布局：版本字节（1）+ 地址哈希（20）+ 校验和（4）。
// 引擎内部一律使用原始 20 字节地址，Base58Check 仅用于对外展示与录入。
func AddressBytesToBase58(addressBytes []byte) (string, error) {
	if len(addressBytes) != addressHashLen {
		return "", fmt.Errorf("invalid address length: expected %d bytes, got %d", addressHashLen, len(addressBytes))
	}

	payload := make([]byte, 0, addressDecodedLen)
	payload = append(payload, addressVersion)
	payload = append(payload, addressBytes...)
	payload = append(payload, addressChecksum(payload)...)

	return base58.Encode(payload), nil
}

// AddressBase58ToBytes 解码 Base58Check 地址，返回 20 字节地址哈希
//
// 校验和或版本字节不匹配时报错，不返回部分结果。
func AddressBase58ToBytes(base58Addr string) ([]byte, error) {
	decoded := base58.Decode(base58Addr)
	if len(decoded) != addressDecodedLen {
		return nil, fmt.Errorf("invalid address length: expected %d bytes after Base58 decode, got %d", addressDecodedLen, len(decoded))
	}

	payload, sum := decoded[:addressDecodedLen-4], decoded[addressDecodedLen-4:]
	if !bytes.Equal(sum, addressChecksum(payload)) {
		return nil, fmt.Errorf("invalid checksum")
	}
	if payload[0] != addressVersion {
		return nil, fmt.Errorf("unexpected address version byte: 0x%02X", payload[0])
	}

	addressBytes := make([]byte, addressHashLen)
	copy(addressBytes, payload[1:])
	return addressBytes, nil
}

// AddressHexToBase58 将十六进制地址转为 Base58Check 地址
//
// hexAddr 可带或不带 0x 前缀（40 个十六进制字符，20 字节）。
func AddressHexToBase58(hexAddr string) (string, error) {
	addressBytes, err := hex.DecodeString(strings.TrimPrefix(hexAddr, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid hex address: %w", err)
	}
	return AddressBytesToBase58(addressBytes)
}

// AddressBase58ToHex 将 Base58Check 地址转为带 0x 前缀的十六进制
func AddressBase58ToHex(base58Addr string) (string, error) {
	addressBytes, err := AddressBase58ToBytes(base58Addr)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(addressBytes), nil
}

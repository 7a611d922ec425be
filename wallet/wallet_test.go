package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/weisyn/claim-engine-go/utils"
)

func TestNewWallet(t *testing.T) {
	w, err := NewWallet()
	if err != nil {
		t.Fatalf("NewWallet() failed: %v", err)
	}

	if len(w.Address()) != 20 {
		t.Errorf("Address() length = %d, want 20", len(w.Address()))
	}
	if w.PrivateKey() == nil {
		t.Error("PrivateKey() is nil")
	}
}

func TestNewWalletFromPrivateKey(t *testing.T) {
	tests := []struct {
		name          string
		privateKeyHex string
		wantErr       bool
	}{
		{
			name:          "valid key with 0x prefix",
			privateKeyHex: "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
		},
		{
			name:          "valid key without prefix",
			privateKeyHex: "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
		},
		{
			name:          "invalid hex",
			privateKeyHex: "0xZZZZ",
			wantErr:       true,
		},
		{
			name:          "wrong length",
			privateKeyHex: "0x1234",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWalletFromPrivateKey(tt.privateKeyHex)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWalletFromPrivateKey() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(w.Address()) != 20 {
				t.Errorf("Address() length = %d, want 20", len(w.Address()))
			}
		})
	}
}

func TestWallet_DeterministicAddress(t *testing.T) {
	// 同一私钥派生同一地址
	keyHex := "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	first, err := NewWalletFromPrivateKey(keyHex)
	if err != nil {
		t.Fatalf("NewWalletFromPrivateKey() failed: %v", err)
	}
	second, err := NewWalletFromPrivateKey(keyHex)
	if err != nil {
		t.Fatalf("NewWalletFromPrivateKey() failed: %v", err)
	}
	if !bytes.Equal(first.Address(), second.Address()) {
		t.Error("same private key derived different addresses")
	}
}

func TestWallet_AddressBase58(t *testing.T) {
	w, err := NewWalletFromPrivateKey("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")
	if err != nil {
		t.Fatalf("NewWalletFromPrivateKey() failed: %v", err)
	}

	encoded, err := w.AddressBase58()
	if err != nil {
		t.Fatalf("AddressBase58() failed: %v", err)
	}
	if encoded == "" {
		t.Fatal("AddressBase58() returned empty string")
	}

	// Base58Check 地址解码后等于原始 20 字节地址
	decoded, err := utils.AddressBase58ToBytes(encoded)
	if err != nil {
		t.Fatalf("AddressBase58ToBytes() failed: %v", err)
	}
	if !bytes.Equal(decoded, w.Address()) {
		t.Errorf("decoded address = %x, want %x", decoded, w.Address())
	}
}

func TestWallet_SignMessage(t *testing.T) {
	w, err := NewWallet()
	if err != nil {
		t.Fatalf("NewWallet() failed: %v", err)
	}

	msg := []byte("claim batch payload")
	signature, err := w.SignMessage(msg)
	if err != nil {
		t.Fatalf("SignMessage() failed: %v", err)
	}
	if len(signature) != 64 {
		t.Fatalf("signature length = %d, want 64 (r || s)", len(signature))
	}

	// 用公钥验证签名
	hash := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(&w.PrivateKey().PublicKey, hash[:], r, s) {
		t.Error("signature did not verify against the wallet public key")
	}
}

func TestKeystore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	km, err := NewKeystoreManager(dir)
	if err != nil {
		t.Fatalf("NewKeystoreManager() failed: %v", err)
	}

	privateKey := make([]byte, 32)
	for i := range privateKey {
		privateKey[i] = byte(i + 1)
	}
	address := hex.EncodeToString([]byte{0xAB, 0xCD})

	path, err := km.Save(address, privateKey, "correct horse")
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if path == "" {
		t.Fatal("Save() returned empty path")
	}

	loaded, err := km.Load(address, "correct horse")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !bytes.Equal(loaded, privateKey) {
		t.Error("loaded private key differs from saved key")
	}

	// 错误口令：MAC 校验失败
	if _, err := km.Load(address, "wrong password"); err == nil {
		t.Error("Load() with wrong password should fail")
	}
}

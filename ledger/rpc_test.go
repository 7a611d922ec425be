package ledger

import (
	"errors"
	"testing"

	"github.com/weisyn/claim-engine-go/types"
)

func TestDecodeUint64(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		want    uint64
		wantErr bool
	}{
		{"json number", float64(42), 42, false},
		{"decimal string", "42", 42, false},
		{"hex string", "0x10", 16, false},
		{"hex string upper prefix", "0X1f", 31, false},
		{"hex zero", "0x0", 0, false},
		{"negative number", float64(-1), 0, true},
		{"non-numeric string", "abc", 0, true},
		{"bare 0x prefix", "0x", 0, true},
		{"unexpected type", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeUint64(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeUint64(%v) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("decodeUint64(%v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMapNotFound_TranslatesNodeNotFound(t *testing.T) {
	nodeErr := &types.WesError{
		Code:        "UTXO_TOKEN_NOT_FOUND",
		Layer:       "ownership-ledger",
		UserMessage: "token 不存在",
	}

	err := mapNotFound(nodeErr, 7, "claim_ownerOf")
	if !types.IsNotFound(err) {
		t.Fatalf("mapNotFound() = %v, want CLAIM_NOT_FOUND", err)
	}
	ce, _ := types.IsClaimError(err)
	if ce.Details["claimId"] != uint64(7) {
		t.Errorf("Details[claimId] = %v, want 7", ce.Details["claimId"])
	}
}

func TestMapNotFound_WrapsOtherErrors(t *testing.T) {
	cause := errors.New("connection refused")

	err := mapNotFound(cause, 7, "claim_burn")
	if types.IsNotFound(err) {
		t.Fatal("mapNotFound() translated an unrelated error to CLAIM_NOT_FOUND")
	}
	// 错误链保留，errors.Is 能找到原始错误
	if !errors.Is(err, cause) {
		t.Error("mapNotFound() broke the error chain")
	}

	// 节点侧非 NOT_FOUND 的 WesError 同样保留在链上
	nodeErr := &types.WesError{Code: "UTXO_INSUFFICIENT_BALANCE"}
	err = mapNotFound(nodeErr, 7, "claim_burn")
	var wesErr *types.WesError
	if !errors.As(err, &wesErr) || wesErr.Code != "UTXO_INSUFFICIENT_BALANCE" {
		t.Errorf("wrapped WesError not recoverable via errors.As: %v", err)
	}
}

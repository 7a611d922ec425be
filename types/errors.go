package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimError 领取凭证错误类型（基于 WES 错误规范）
//
// 与 WesError 结构对齐：Code/Layer/UserMessage 必填，TraceID 用于跨层追踪。
type ClaimError struct {
	Code        string
	Layer       string
	UserMessage string
	Detail      string
	Details     map[string]interface{}
	TraceID     string
	Timestamp   string
	Err         error
}

func (e *ClaimError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.UserMessage, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.UserMessage)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// ToProblemDetails 转换为 Problem Details
func (e *ClaimError) ToProblemDetails() *WesProblemDetails {
	return &WesProblemDetails{
		Code:        e.Code,
		Layer:       e.Layer,
		UserMessage: e.UserMessage,
		Detail:      e.Detail,
		Details:     e.Details,
		TraceID:     e.TraceID,
		Timestamp:   e.Timestamp,
	}
}

// 错误码常量
const (
	// 绑定阶段：批次中某条腿的出资方 ≠ 绑定调用方
	ErrorCodeClaimAuthorization = "CLAIM_AUTHORIZATION_ERROR"
	// 领取/作废阶段：调用方不是当前持有人（也不满足作废策略）
	ErrorCodeClaimOwnership = "CLAIM_OWNERSHIP_ERROR"
	// 指定 claimId 没有存活记录（"从未存在"与"已被消耗"不可区分）
	ErrorCodeClaimNotFound = "CLAIM_NOT_FOUND"
	// 时间窗口尚未开始
	ErrorCodeClaimNotStarted = "CLAIM_NOT_STARTED"
	// 时间窗口已过期
	ErrorCodeClaimExpired = "CLAIM_EXPIRED"
	// 额度台账拒绝了批量划转
	ErrorCodeClaimTransferExecution = "CLAIM_TRANSFER_EXECUTION_ERROR"
	// 绑定参数校验失败（空批次、零金额、非法窗口等）
	ErrorCodeClaimValidation = "CLAIM_VALIDATION_ERROR"
)

// LayerClaimEngineGo 本模块的错误层标识
const LayerClaimEngineGo = "claim-engine-go"

func newClaimError(code, userMessage, detail string, details map[string]interface{}, err error) *ClaimError {
	if details == nil {
		details = make(map[string]interface{})
	}
	return &ClaimError{
		Code:        code,
		Layer:       LayerClaimEngineGo,
		UserMessage: userMessage,
		Detail:      detail,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Err:         err,
	}
}

// NewAuthorizationError 创建授权错误（绑定阶段，指出违规的出资方账户）
func NewAuthorizationError(offendingAccount []byte, entryIndex int) *ClaimError {
	return newClaimError(
		ErrorCodeClaimAuthorization,
		"batch entry not authorized by caller",
		fmt.Sprintf("entry %d source account %s does not match caller", entryIndex, hexAccount(offendingAccount)),
		map[string]interface{}{
			"entryIndex":       entryIndex,
			"offendingAccount": hexAccount(offendingAccount),
		},
		nil,
	)
}

// NewOwnershipError 创建所有权错误（领取/作废阶段）
func NewOwnershipError(caller []byte, claimID uint64) *ClaimError {
	return newClaimError(
		ErrorCodeClaimOwnership,
		"caller is not the current token holder",
		fmt.Sprintf("caller %s does not hold claim token %d", hexAccount(caller), claimID),
		map[string]interface{}{
			"caller":  hexAccount(caller),
			"claimId": claimID,
		},
		nil,
	)
}

// NewNotFoundError 创建未找到错误
//
// 注意：故意不区分"从未存在"与"已被消耗"，重放必然得到同样的失败。
func NewNotFoundError(claimID uint64) *ClaimError {
	return newClaimError(
		ErrorCodeClaimNotFound,
		"no live claim record for id",
		fmt.Sprintf("claim %d not found", claimID),
		map[string]interface{}{"claimId": claimID},
		nil,
	)
}

// NewNotStartedError 创建窗口未开始错误
func NewNotStartedError(claimID uint64, start, now time.Time) *ClaimError {
	return newClaimError(
		ErrorCodeClaimNotStarted,
		"claim window has not started",
		fmt.Sprintf("claim %d starts at %s, now %s", claimID,
			start.Format(time.RFC3339), now.Format(time.RFC3339)),
		map[string]interface{}{
			"claimId":   claimID,
			"startTime": start.Format(time.RFC3339),
		},
		nil,
	)
}

// NewExpiredError 创建窗口已过期错误
func NewExpiredError(claimID uint64, expiration, now time.Time) *ClaimError {
	return newClaimError(
		ErrorCodeClaimExpired,
		"claim window has expired",
		fmt.Sprintf("claim %d expired at %s, now %s", claimID,
			expiration.Format(time.RFC3339), now.Format(time.RFC3339)),
		map[string]interface{}{
			"claimId":        claimID,
			"expirationTime": expiration.Format(time.RFC3339),
		},
		nil,
	)
}

// NewTransferExecutionError 创建划转执行错误（额度台账拒绝批量划转）
func NewTransferExecutionError(claimID uint64, err error) *ClaimError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return newClaimError(
		ErrorCodeClaimTransferExecution,
		"allowance ledger rejected the pull transfer",
		detail,
		map[string]interface{}{"claimId": claimID},
		err,
	)
}

// NewValidationError 创建参数校验错误
func NewValidationError(detail string) *ClaimError {
	return newClaimError(
		ErrorCodeClaimValidation,
		"invalid bind request",
		detail,
		nil,
		nil,
	)
}

// IsClaimError 检查错误是否为 ClaimError
func IsClaimError(err error) (*ClaimError, bool) {
	var ce *ClaimError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// isClaimCode 检查错误是否为指定错误码的 ClaimError
func isClaimCode(err error, code string) bool {
	ce, ok := IsClaimError(err)
	return ok && ce.Code == code
}

// IsAuthorizationError 检查是否为授权错误
func IsAuthorizationError(err error) bool { return isClaimCode(err, ErrorCodeClaimAuthorization) }

// IsOwnershipError 检查是否为所有权错误
func IsOwnershipError(err error) bool { return isClaimCode(err, ErrorCodeClaimOwnership) }

// IsNotFound 检查是否为未找到错误
func IsNotFound(err error) bool { return isClaimCode(err, ErrorCodeClaimNotFound) }

// IsNotStarted 检查是否为窗口未开始错误
func IsNotStarted(err error) bool { return isClaimCode(err, ErrorCodeClaimNotStarted) }

// IsExpired 检查是否为窗口已过期错误
func IsExpired(err error) bool { return isClaimCode(err, ErrorCodeClaimExpired) }

// IsTransferExecutionError 检查是否为划转执行错误
func IsTransferExecutionError(err error) bool {
	return isClaimCode(err, ErrorCodeClaimTransferExecution)
}

// IsValidationError 检查是否为参数校验错误
func IsValidationError(err error) bool { return isClaimCode(err, ErrorCodeClaimValidation) }

func hexAccount(account []byte) string {
	if len(account) == 0 {
		return "<nil>"
	}
	return "0x" + hex.EncodeToString(account)
}

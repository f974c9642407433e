package asm

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ASM_ERR_L1_HEADER_INVALID ErrorCode = "ASM_ERR_L1_HEADER_INVALID"
	ASM_ERR_GENESIS_INVALID   ErrorCode = "ASM_ERR_GENESIS_INVALID"
	ASM_ERR_SECTION_INVALID   ErrorCode = "ASM_ERR_SECTION_INVALID"

	// ASM_ERR_TX_PARSE marks malformed L1 transaction bytes. It is recovered
	// locally by whoever hits it (the router drops the tx, subprotocols skip
	// it); it never aborts a block.
	ASM_ERR_TX_PARSE ErrorCode = "ASM_ERR_TX_PARSE"

	ASM_ERR_AUX_MISSING_SUBPROTOCOL ErrorCode = "ASM_ERR_AUX_MISSING_SUBPROTOCOL"
	ASM_ERR_AUX_MISSING_TX          ErrorCode = "ASM_ERR_AUX_MISSING_TX"
	ASM_ERR_AUX_TYPE_MISMATCH       ErrorCode = "ASM_ERR_AUX_TYPE_MISMATCH"
	ASM_ERR_AUX_LOG_PROOF_INVALID   ErrorCode = "ASM_ERR_AUX_LOG_PROOF_INVALID"
)

// AsmError is the structural failure type of the state transition. Anything
// carrying one of these codes aborts the whole block; per-transaction
// subprotocol failures never surface as AsmError.
type AsmError struct {
	Code ErrorCode
	Msg  string
}

func (e *AsmError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func Errf(code ErrorCode, format string, args ...any) error {
	return &AsmError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ASM error code from err, or "" if err is not an AsmError.
func CodeOf(err error) ErrorCode {
	var e *AsmError
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

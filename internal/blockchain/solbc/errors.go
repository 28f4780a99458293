// internal/blockchain/solbc/errors.go
package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int
	Name string
	Msg  string
}

// ErrorAnalyzer turns RPC send errors into short user facing reasons.
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

var permanentMarkers = []string{
	"insufficient lamports",
	"insufficient funds",
	"slippage",
	"custom program error",
	"anchorerror",
	"signature verification failure",
	"already been processed",
}

// IsPermanent reports whether resending the same transaction cannot help.
func (ea *ErrorAnalyzer) IsPermanent(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		return true
	}
	text := strings.ToLower(rpcErr.Message)
	for _, m := range permanentMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Describe returns the most specific reason found in the error or its
// simulation logs.
func (ea *ErrorAnalyzer) Describe(err error) string {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return "send failed"
	}

	for _, line := range simulationLogs(rpcErr) {
		if strings.Contains(line, "AnchorError occurred") {
			ae := parseAnchorErrorLog(line)
			ea.logger.Warn("Anchor error detected",
				zap.Int("code", ae.Code),
				zap.String("name", ae.Name),
				zap.String("message", ae.Msg))
			if ae.Msg != "" {
				return fmt.Sprintf("program error %s: %s", ae.Name, ae.Msg)
			}
			return fmt.Sprintf("program error %s", ae.Name)
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "insufficient lamports") || strings.Contains(lower, "insufficient funds") {
			return "insufficient SOL for this transaction"
		}
		if strings.Contains(lower, "slippage") {
			return "price moved beyond slippage tolerance"
		}
	}
	if strings.Contains(strings.ToLower(rpcErr.Message), "blockhash not found") {
		return "transaction expired before it reached the network"
	}
	return "rpc rejected transaction"
}

func simulationLogs(rpcErr *jsonrpc.RPCError) []string {
	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := dataMap["logs"].([]interface{})
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if _, after, ok := strings.Cut(logStr, "Error Number:"); ok {
		num, _, _ := strings.Cut(after, ".")
		fmt.Sscanf(strings.TrimSpace(num), "%d", &result.Code)
	}
	if _, after, ok := strings.Cut(logStr, "Error Code:"); ok {
		name, _, _ := strings.Cut(after, ".")
		result.Name = strings.TrimSpace(name)
	}
	if _, after, ok := strings.Cut(logStr, "Error Message:"); ok {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(after), ".")
	}
	return result
}

package rpc

import (
	"fmt"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Server-defined error codes.
const (
	// NodeUnhealthy indicates the server is marked unhealthy.
	NodeUnhealthy = -32005

	// ScanError indicates a scan/iteration error.
	ScanError = -32012

	// TransactionHistoryNotAvailable indicates the journal is disabled.
	TransactionHistoryNotAvailable = -32011

	// TransactionNotFound indicates no journal entry has the sequence number.
	TransactionNotFound = -32020
)

// Common error messages.
var (
	ErrParseError          = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest      = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound      = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams       = NewRPCError(InvalidParams, "Invalid params")
	ErrInternalError       = NewRPCError(InternalError, "Internal error")
	ErrNodeUnhealthy       = NewRPCError(NodeUnhealthy, "Node is unhealthy")
	ErrNoHistory           = NewRPCError(TransactionHistoryNotAvailable, "Transaction history is not available from this node")
	ErrTransactionNotFound = NewRPCError(TransactionNotFound, "Transaction not found")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an invalid params error with a custom message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// InvalidParamsErrorf creates an invalid params error with a formatted message.
func InvalidParamsErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParams, fmt.Sprintf(format, args...))
}

// InternalServerErrorf creates an internal server error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}

package workflow

import (
	"net/http"
	"strings"
)

const (
	GRPCCodeAborted            = "Aborted"
	GRPCCodeFailedPrecondition = "FailedPrecondition"
	GRPCCodeInternal           = "Internal"
	GRPCCodeInvalidArgument    = "InvalidArgument"
	GRPCCodeNotFound           = "NotFound"
	GRPCCodeUnavailable        = "Unavailable"
)

const rpcCodeInternal = "WORKFLOW_INTERNAL"

// TransportErrorMapping defines protocol-level mappings for kernel errors.
type TransportErrorMapping struct {
	KernelCode string
	HTTPStatus int
	GRPCCode   string
	RPCCode    string
}

// RPCErrorEnvelope is the RPC transport error shape.
type RPCErrorEnvelope struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// MapKernelError maps kernel error kinds to transport protocol codes, for
// services that expose the kernel over HTTP or gRPC.
func MapKernelError(err error) TransportErrorMapping {
	code := strings.TrimSpace(ErrorCode(err))

	switch code {
	case ErrCodeModelLookup:
		status := http.StatusUnprocessableEntity
		grpc := GRPCCodeFailedPrecondition
		switch ErrorReason(err) {
		case ReasonVersionNotFound:
			status = http.StatusNotFound
			grpc = GRPCCodeNotFound
		case ReasonManagerFailed:
			status = http.StatusServiceUnavailable
			grpc = GRPCCodeUnavailable
		}
		return TransportErrorMapping{KernelCode: code, HTTPStatus: status, GRPCCode: grpc, RPCCode: code}
	case ErrCodeActivityNotFound:
		return TransportErrorMapping{
			KernelCode: code,
			HTTPStatus: http.StatusConflict,
			GRPCCode:   GRPCCodeFailedPrecondition,
			RPCCode:    code,
		}
	case ErrCodePluginExecution:
		return TransportErrorMapping{
			KernelCode: code,
			HTTPStatus: http.StatusUnprocessableEntity,
			GRPCCode:   GRPCCodeAborted,
			RPCCode:    code,
		}
	case ErrCodeCycleDetected:
		return TransportErrorMapping{
			KernelCode: code,
			HTTPStatus: http.StatusInternalServerError,
			GRPCCode:   GRPCCodeInternal,
			RPCCode:    code,
		}
	case ErrCodePrecondition:
		return TransportErrorMapping{
			KernelCode: code,
			HTTPStatus: http.StatusBadRequest,
			GRPCCode:   GRPCCodeInvalidArgument,
			RPCCode:    code,
		}
	default:
		return TransportErrorMapping{
			KernelCode: code,
			HTTPStatus: http.StatusInternalServerError,
			GRPCCode:   GRPCCodeInternal,
			RPCCode:    rpcCodeInternal,
		}
	}
}

// HTTPStatusForError returns the mapped HTTP status code for a kernel error.
func HTTPStatusForError(err error) int {
	return MapKernelError(err).HTTPStatus
}

// GRPCCodeForError returns the mapped gRPC status code string for a kernel error.
func GRPCCodeForError(err error) string {
	return MapKernelError(err).GRPCCode
}

// RPCErrorForError returns an RPC envelope for a kernel error.
func RPCErrorForError(err error) *RPCErrorEnvelope {
	if err == nil {
		return nil
	}
	mapping := MapKernelError(err)
	return &RPCErrorEnvelope{
		Code:    mapping.RPCCode,
		Reason:  ErrorReason(err),
		Message: err.Error(),
	}
}

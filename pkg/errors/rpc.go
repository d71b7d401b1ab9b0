package errors

import (
	stderrors "errors"
	"fmt"
)

/*
ErrorCode is the numeric JSON-RPC error code carried on the wire. The set is
closed: every error the runtime hands to a transport maps onto one of these.
*/
type ErrorCode int

const (
	ErrorCodeParseError                   ErrorCode = -32700
	ErrorCodeInvalidRequest               ErrorCode = -32600
	ErrorCodeMethodNotFound               ErrorCode = -32601
	ErrorCodeInvalidParams                ErrorCode = -32602
	ErrorCodeInternalError                ErrorCode = -32603
	ErrorCodeTaskNotFound                 ErrorCode = -32000
	ErrorCodeTaskNotCancelable            ErrorCode = -32001
	ErrorCodePushNotificationNotSupported ErrorCode = -32002
	ErrorCodeUnsupportedOperation         ErrorCode = -32003
)

var kinds = map[ErrorCode]string{
	ErrorCodeParseError:                   "ParseError",
	ErrorCodeInvalidRequest:               "InvalidRequest",
	ErrorCodeMethodNotFound:               "MethodNotFound",
	ErrorCodeInvalidParams:                "InvalidParams",
	ErrorCodeInternalError:                "InternalError",
	ErrorCodeTaskNotFound:                 "TaskNotFound",
	ErrorCodeTaskNotCancelable:            "TaskNotCancelable",
	ErrorCodePushNotificationNotSupported: "PushNotificationNotSupported",
	ErrorCodeUnsupportedOperation:         "UnsupportedOperation",
}

/*
String returns the symbolic kind of the code, e.g. "TaskNotFound".
*/
func (code ErrorCode) String() string {
	if kind, ok := kinds[code]; ok {
		return kind
	}

	return fmt.Sprintf("ErrorCode(%d)", int(code))
}

/*
RpcError represents a JSON-RPC error response. Code, Message and Data are the
wire shape; TaskID and the wrapped cause are kept for logging and errors.As.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	TaskID  string `json:"-"`

	cause error
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("RPC error %d: %s (task %s)", e.Code, e.Message, e.TaskID)
	}

	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (e *RpcError) Unwrap() error {
	return e.cause
}

/*
Is matches on the error code, so errors.Is(err, ErrTaskNotFound) holds for any
TaskNotFound error regardless of message or data.
*/
func (e *RpcError) Is(target error) bool {
	t, ok := target.(*RpcError)
	return ok && t.Code == e.Code
}

/*
Kind returns the symbolic name of the error's code.
*/
func (e *RpcError) Kind() string {
	return ErrorCode(e.Code).String()
}

var (
	ErrParseError     = &RpcError{Code: int(ErrorCodeParseError), Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: int(ErrorCodeInvalidRequest), Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: int(ErrorCodeMethodNotFound), Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: int(ErrorCodeInvalidParams), Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: int(ErrorCodeInternalError), Message: "Internal error"}

	ErrTaskNotFound                 = &RpcError{Code: int(ErrorCodeTaskNotFound), Message: "Task not found"}
	ErrTaskNotCancelable            = &RpcError{Code: int(ErrorCodeTaskNotCancelable), Message: "Task cannot be canceled"}
	ErrPushNotificationNotSupported = &RpcError{Code: int(ErrorCodePushNotificationNotSupported), Message: "Push Notification is not supported"}
	ErrUnsupportedOperation         = &RpcError{Code: int(ErrorCodeUnsupportedOperation), Message: "This operation is not supported"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
WithData returns a copy carrying the structured data payload.
*/
func (e *RpcError) WithData(data any) *RpcError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

/*
WithTask returns a copy associated with the given task ID. The ID is also put
on the wire as data.taskId unless the error already carries data.
*/
func (e *RpcError) WithTask(taskID string) *RpcError {
	newErr := *e
	newErr.TaskID = taskID

	if newErr.Data == nil && taskID != "" {
		newErr.Data = map[string]any{"taskId": taskID}
	}

	return &newErr
}

/*
Wrap returns a copy that records cause as the underlying error.
*/
func (e *RpcError) Wrap(cause error) *RpcError {
	newErr := *e
	newErr.cause = cause
	return &newErr
}

/*
FromError maps any error onto the taxonomy. RpcErrors anywhere in the chain are
returned as-is, everything else becomes an InternalError wrapping the cause.
*/
func FromError(err error) *RpcError {
	if err == nil {
		return nil
	}

	var rpcErr *RpcError

	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}

	return ErrInternal.WithMessagef("Internal error: %v", err).Wrap(err)
}

/*
Code returns the ErrorCode err maps to, or 0 for a nil error.
*/
func Code(err error) ErrorCode {
	if err == nil {
		return 0
	}

	return ErrorCode(FromError(err).Code)
}

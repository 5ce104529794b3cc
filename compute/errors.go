package compute

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is a backend status code. The values follow the OpenCL numbering so codes from a
// native driver can be passed through unchanged.
type ErrorCode int

// Known error codes.
const (
	CodeSuccess              ErrorCode = 0
	CodeDeviceNotFound       ErrorCode = -1
	CodeMemAllocationFailure ErrorCode = -4
	CodeOutOfResources       ErrorCode = -5
	CodeExecutionFailure     ErrorCode = -14
	CodeInvalidValue         ErrorCode = -30
	CodeInvalidMemObject     ErrorCode = -38
	CodeInvalidProgram       ErrorCode = -44
	CodeInvalidKernelName    ErrorCode = -46
	CodeInvalidKernelArgs    ErrorCode = -52
	CodeInvalidWorkDimension ErrorCode = -53
	CodeInvalidOperation     ErrorCode = -59
	CodeInvalidBufferSize    ErrorCode = -61
	CodeInvalidWorkSize      ErrorCode = -63
)

var codeNames = map[ErrorCode]string{
	CodeSuccess:              "SUCCESS",
	CodeDeviceNotFound:       "DEVICE_NOT_FOUND",
	CodeMemAllocationFailure: "MEM_OBJECT_ALLOCATION_FAILURE",
	CodeOutOfResources:       "OUT_OF_RESOURCES",
	CodeExecutionFailure:     "EXEC_STATUS_ERROR",
	CodeInvalidValue:         "INVALID_VALUE",
	CodeInvalidMemObject:     "INVALID_MEM_OBJECT",
	CodeInvalidProgram:       "INVALID_PROGRAM",
	CodeInvalidKernelName:    "INVALID_KERNEL_NAME",
	CodeInvalidKernelArgs:    "INVALID_KERNEL_ARGS",
	CodeInvalidWorkDimension: "INVALID_WORK_DIMENSION",
	CodeInvalidOperation:     "INVALID_OPERATION",
	CodeInvalidBufferSize:    "INVALID_BUFFER_SIZE",
	CodeInvalidWorkSize:      "INVALID_GLOBAL_WORK_SIZE",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

// Error is a failed device operation together with the backend status code.
type Error struct {
	Op   string
	Code ErrorCode
	Err  error
}

// NewError returns an *Error for op with a formatted message.
func NewError(op string, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Op: op, Code: code, Err: errors.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed: %s (%d)", e.Op, e.Code, int(e.Code))
	}
	return fmt.Sprintf("%s failed: %s (%d): %v", e.Op, e.Code, int(e.Code), e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the backend code carried by err, CodeSuccess for nil and
// CodeExecutionFailure for errors that did not come from a device.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	var devErr *Error
	if errors.As(err, &devErr) {
		return devErr.Code
	}
	return CodeExecutionFailure
}

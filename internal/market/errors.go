package market

import (
	"errors"
	"fmt"
)

// ErrCode classifica falhas das operações públicas do engine.
// Callers não devem repetir invalid_argument/failed_precondition sem mudar
// a requisição; aborted é seguro de repetir.
type ErrCode string

const (
	CodeInvalidArgument    ErrCode = "invalid_argument"
	CodeUnauthenticated    ErrCode = "unauthenticated"
	CodeNotFound           ErrCode = "not_found"
	CodeFailedPrecondition ErrCode = "failed_precondition"
	CodeAborted            ErrCode = "aborted"
	CodeInternal           ErrCode = "internal"
)

type Error struct {
	Code ErrCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf cria um erro tipado do engine.
func Errorf(code ErrCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr anexa uma causa mantendo o código.
func WrapErr(code ErrCode, err error, msg string) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Code extrai o código de um erro do engine; erros desconhecidos são internal.
func Code(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

package internal

import (
	"errors"
	"fmt"
)

// 錯誤碼
const (
	ErrCodeNoRoom         = "NO_ROOM"
	ErrCodeRoomNotFound   = "ROOM_NOT_FOUND"
	ErrCodeRoomFinished   = "ROOM_FINISHED"
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeUnknownType    = "UNKNOWN_TYPE"
	ErrCodeInvalidPlayer  = "INVALID_PLAYER"
	ErrCodeConnClosed     = "CONNECTION_CLOSED"
	ErrCodeSendBufferFull = "SEND_BUFFER_FULL"
)

// AppError 帶錯誤碼的應用錯誤
//
// Message 是回傳給客戶端 error 訊息的文字。
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// newError 創建新的應用錯誤
func newError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// wrapError 包裝底層錯誤
func wrapError(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// 預定義錯誤
var (
	ErrNoRoom         = newError(ErrCodeNoRoom, "No room assigned")
	ErrRoomNotFound   = newError(ErrCodeRoomNotFound, "Room not found")
	ErrRoomGone       = newError(ErrCodeRoomNotFound, "Room no longer exists")
	ErrRoomFinished   = newError(ErrCodeRoomFinished, "Game already over")
	ErrInvalidPlayer  = newError(ErrCodeInvalidPlayer, "Invalid player number")
	ErrUnknownType    = newError(ErrCodeUnknownType, "Unknown message type")
	ErrConnClosed     = newError(ErrCodeConnClosed, "connection closed")
	ErrSendBufferFull = newError(ErrCodeSendBufferFull, "send buffer full")
)

// IsStaleReference 是否為需要回覆客戶端的失效引用錯誤
func IsStaleReference(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case ErrCodeNoRoom, ErrCodeRoomNotFound, ErrCodeInvalidPlayer:
		return true
	}
	return false
}

// clientMessage 取出回傳給客戶端的錯誤文字
func clientMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

package model

import (
	"errors"
	"fmt"

	"bookcatalog/internal/shared"
)

// LookupError định nghĩa base error cho lookup domain
type LookupError struct {
	Code    string
	Message string
	Err     error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is so sánh theo Code để errors.Is hoạt động với sentinel
func (e *LookupError) Is(target error) bool {
	var t *LookupError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ============================================
// DOMAIN-SPECIFIC ERROR DEFINITIONS
// ============================================

// ErrInvalidLookupKind - kind không thuộc publisher/genre/language/format
var ErrInvalidLookupKind = &LookupError{
	Code:    "INVALID_LOOKUP_KIND",
	Message: "Lookup kind must be one of publisher, genre, language, format",
}

// ErrInvalidPageParams - offset/limit không hợp lệ
var ErrInvalidPageParams = &LookupError{
	Code:    "INVALID_PAGE_PARAMS",
	Message: "Invalid offset or limit",
}

// RuleNameNotBlank là tên rule khi lookup name rỗng sau khi trim
const RuleNameNotBlank = "lookup_name_not_blank"

// ============================================
// ERROR CONSTRUCTORS
// ============================================

func NewInvalidKind(kind string) error {
	return &LookupError{
		Code:    ErrInvalidLookupKind.Code,
		Message: ErrInvalidLookupKind.Message,
		Err:     fmt.Errorf("got %q", kind),
	}
}

func NewLookupNotFound(kind Kind, id any) error {
	return shared.NewNotFound(string(kind), id)
}

func NewBlankName(kind Kind) error {
	return shared.NewCheckViolation(RuleNameNotBlank, "name",
		fmt.Sprintf("%s name must not be blank", kind), nil)
}

// ============================================
// ERROR CHECKING FUNCTIONS
// ============================================

func IsInvalidKind(err error) bool {
	return errors.Is(err, ErrInvalidLookupKind)
}

// GetErrorCode extracts error code
func GetErrorCode(err error) string {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Code
	}
	return shared.ErrorCode(err)
}

package shared

import (
	"errors"
	"fmt"
)

// ============================================
// CONSTRAINT VIOLATIONS
// ============================================

// ViolationKind phân loại lỗi ràng buộc dữ liệu
type ViolationKind string

const (
	ViolationUnique     ViolationKind = "unique"
	ViolationCheck      ViolationKind = "check"
	ViolationForeignKey ViolationKind = "foreign_key"
)

// ConstraintViolation is returned when a write breaks a storage invariant.
// Rule carries the constraint name (or the equivalent rule name when the
// violation is caught before the write reaches PostgreSQL).
type ConstraintViolation struct {
	Kind    ViolationKind
	Rule    string
	Field   string
	Message string
	Err     error
}

func (e *ConstraintViolation) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s violation on %s", e.Kind, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code(), msg, e.Rule, e.Err)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code(), msg, e.Rule)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

// Code trả về error code dạng UPPER_SNAKE
func (e *ConstraintViolation) Code() string {
	switch e.Kind {
	case ViolationUnique:
		return "UNIQUE_VIOLATION"
	case ViolationCheck:
		return "CHECK_VIOLATION"
	case ViolationForeignKey:
		return "FOREIGN_KEY_VIOLATION"
	}
	return "CONSTRAINT_VIOLATION"
}

// NewUniqueViolation - duplicate key on field
func NewUniqueViolation(rule, field string, err error) *ConstraintViolation {
	return &ConstraintViolation{
		Kind:    ViolationUnique,
		Rule:    rule,
		Field:   field,
		Message: fmt.Sprintf("%s already exists", field),
		Err:     err,
	}
}

// NewCheckViolation - a check rule rejected the row
func NewCheckViolation(rule, field, message string, err error) *ConstraintViolation {
	return &ConstraintViolation{
		Kind:    ViolationCheck,
		Rule:    rule,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NewForeignKeyViolation - referenced lookup row does not exist
func NewForeignKeyViolation(rule, field string, err error) *ConstraintViolation {
	return &ConstraintViolation{
		Kind:    ViolationForeignKey,
		Rule:    rule,
		Field:   field,
		Message: fmt.Sprintf("%s references a missing row", field),
		Err:     err,
	}
}

// ============================================
// NOT FOUND
// ============================================

// NotFoundError - entity với id không tồn tại
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("[NOT_FOUND] %s %s not found", e.Entity, e.ID)
}

// NewNotFound tạo NotFoundError, id được format bằng %v
func NewNotFound(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// ============================================
// ERROR CHECKING FUNCTIONS
// ============================================

func asViolation(err error) (*ConstraintViolation, bool) {
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return cv, true
	}
	return nil, false
}

// IsConstraintViolation reports any ConstraintViolation in the chain.
func IsConstraintViolation(err error) bool {
	_, ok := asViolation(err)
	return ok
}

func IsUniqueViolation(err error) bool {
	cv, ok := asViolation(err)
	return ok && cv.Kind == ViolationUnique
}

func IsCheckViolation(err error) bool {
	cv, ok := asViolation(err)
	return ok && cv.Kind == ViolationCheck
}

func IsForeignKeyViolation(err error) bool {
	cv, ok := asViolation(err)
	return ok && cv.Kind == ViolationForeignKey
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ViolatedRule lấy tên rule/constraint, "" nếu không phải ConstraintViolation
func ViolatedRule(err error) string {
	if cv, ok := asViolation(err); ok {
		return cv.Rule
	}
	return ""
}

// ViolatedField lấy tên field bị vi phạm
func ViolatedField(err error) string {
	if cv, ok := asViolation(err); ok {
		return cv.Field
	}
	return ""
}

// ErrorCode maps an error to a stable code for CLI output.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if cv, ok := asViolation(err); ok {
		return cv.Code()
	}
	if IsNotFound(err) {
		return "NOT_FOUND"
	}
	return "INTERNAL_ERROR"
}

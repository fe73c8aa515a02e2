package model

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"bookcatalog/internal/shared"
)

// fieldRules: thứ tự báo lỗi khi nhiều field cùng sai, kèm rule tương ứng
var fieldRules = []struct {
	field string
	rule  string
}{
	{"title", RuleTitleNotBlank},
	{"name", RuleNameNotBlank},
	{"pages", RulePagesPositive},
	{"price", RulePriceNonNegative},
}

// ValidateBook kiểm tra các invariant mà schema cũng enforce, để lỗi được
// trả về trước khi chạm DB. Lỗi luôn là *shared.ConstraintViolation.
func ValidateBook(b *Book) error {
	err := validation.ValidateStruct(b,
		validation.Field(&b.Title, validation.By(notBlank("title"))),
		validation.Field(&b.Name, validation.By(notBlank("name"))),
		validation.Field(&b.Pages, validation.By(positivePages)),
		validation.Field(&b.Price, validation.By(nonNegativePrice)),
	)
	if err != nil {
		return toViolation(err)
	}

	if !b.CreatedAt.IsZero() {
		if !b.UpdatedAt.IsZero() && b.UpdatedAt.Before(b.CreatedAt) {
			return shared.NewCheckViolation(RuleUpdatedAfterCreated, "updated_at",
				"updated_at must not be earlier than created_at", nil)
		}
		if b.LastEditedAt != nil && b.LastEditedAt.Before(b.CreatedAt) {
			return shared.NewCheckViolation(RuleEditedAfterCreated, "last_edited_at",
				"last_edited_at must not be earlier than created_at", nil)
		}
	}
	return nil
}

func notBlank(field string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " must not be blank")
		}
		return nil
	}
}

func positivePages(value interface{}) error {
	p, _ := value.(*int32)
	if p != nil && *p <= 0 {
		return errors.New("pages must be positive")
	}
	return nil
}

func nonNegativePrice(value interface{}) error {
	p, _ := value.(*decimal.Decimal)
	if p != nil && p.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// toViolation chọn lỗi đầu tiên theo fieldRules
func toViolation(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fr := range fieldRules {
		if ferr, ok := verrs[fr.field]; ok {
			return shared.NewCheckViolation(fr.rule, fr.field, ferr.Error(), nil)
		}
	}
	return err
}

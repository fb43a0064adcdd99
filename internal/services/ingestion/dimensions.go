package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

const dimensionsField = "dimensions"

// DimensionsResult результат двухфазного разбора поля dimensions.
// Если поле передано, заполнено ровно одно из Value и Violations.
type DimensionsResult struct {
	Present    bool
	Value      *models.Dimensions
	Violations []models.Violation
}

func (r DimensionsResult) OK() bool {
	return len(r.Violations) == 0
}

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ParseDimensions декодирует текстовое поле в Dimensions и затем проверяет
// каждое подполе. Пустое или отсутствующее поле допустимо.
func ParseDimensions(validate *validator.Validate, raw *string) DimensionsResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return DimensionsResult{}
	}

	res := DimensionsResult{Present: true}

	// 1. Разбор
	var dims models.Dimensions
	dec := json.NewDecoder(strings.NewReader(*raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dims); err != nil {
		res.Violations = append(res.Violations, models.Violation{
			Field:   dimensionsField,
			Code:    models.CodeStructuredField,
			Message: decodeMessage(err),
		})
		return res
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		res.Violations = append(res.Violations, models.Violation{
			Field:   dimensionsField,
			Code:    models.CodeStructuredField,
			Message: "unexpected data after object",
		})
		return res
	}

	// 2. Проверка подполей
	if err := validate.Struct(dims); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			res.Violations = append(res.Violations, models.Violation{
				Field:   dimensionsField,
				Code:    models.CodeStructuredField,
				Message: err.Error(),
			})
			return res
		}

		for _, fe := range fieldErrs {
			res.Violations = append(res.Violations, models.Violation{
				Field:   dimensionsField + "." + fe.Field(),
				Code:    models.CodeStructuredField,
				Message: ruleMessage(fe),
			})
		}
		return res
	}

	res.Value = &dims
	return res
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q must be a %s", typeErr.Field, typeErr.Type.Kind())
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "malformed JSON object"
	}

	return strings.TrimPrefix(err.Error(), "json: ")
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

// quote обрезает исходное значение перед записью в лог
func quote(raw *string) string {
	if raw == nil {
		return ""
	}
	b := []byte(*raw)
	if len(b) > 64 {
		b = append(bytes.Clone(b[:64]), "..."...)
	}
	return string(b)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// fieldError beschreibt eine einzelne verletzte Eingaberegel.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// minutes nimmt ganzzahlige JSON-Zahlen an, auch in der Form 5.0.
type minutes int

func (m *minutes) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeOf(0)}
	}
	*m = minutes(f)
	return nil
}

func init() {
	// Fehlermeldungen sollen die JSON-Namen nennen, nicht die Go-Feldnamen.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func validationDetails(err error) []fieldError {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
	)

	switch {
	case errors.As(err, &verrs):
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Message: ruleMessage(fe)})
		}
		return out
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return []fieldError{{Field: field, Message: fmt.Sprintf("must be of type %s", typeErr.Type)}}
	case errors.As(err, &synErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return []fieldError{{Field: "body", Message: "must be a valid JSON object"}}
	default:
		return []fieldError{{Field: "body", Message: err.Error()}}
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"careerhub/internal/app"
)

var registerOnce sync.Once

var errTrailingData = errors.New("unexpected data after json payload")

// RegisterValidators configures gin's validator: JSON field names in errors
// and the username tag.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// the services trim before validating, so the binding does too
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return app.IsValidUsername(strings.TrimSpace(fl.Field().String()))
		})
	})
}

// bindStrictJSON decodes exactly one JSON object, rejecting unknown fields and
// trailing data, then validates it.
func bindStrictJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return binding.Validator.ValidateStruct(dst)
}

// validationMessage turns a bind error into a short client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " " + describeTag(fe)
	}

	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	switch {
	case errors.Is(err, errTrailingData):
		return errTrailingData.Error()
	case errors.As(err, &se), errors.As(err, &ute), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "invalid json payload"
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "invalid request payload"
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "eqfield":
		return "must match " + fe.Param()
	case "username":
		return "must be 3 to 64 letters, digits, '_', '.' or '-'"
	default:
		return "is invalid"
	}
}

package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nurpe/procurement-ipc/internal/model"
)

var setupOnce sync.Once

// SetupValidator makes binding errors report json field names and registers
// the ipc_status tag.
func SetupValidator() {
	setupOnce.Do(func() {
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
		_ = v.RegisterValidation("ipc_status", func(fl validator.FieldLevel) bool {
			status := model.IPCStatus(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
			return status.IsValid()
		})
	})
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationDetails flattens binding errors into per-field messages. It
// returns nil for errors that did not come from the validator.
func ValidationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, FieldError{Field: e.Field(), Message: validationMessage(e)})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "len":
		return fmt.Sprintf("must be %s characters long", e.Param())
	case "ipc_status":
		return "must be a known IPC status"
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

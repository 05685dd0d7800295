package telegrambot

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for configuration, outbound
// requests and inbound update payloads.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Use json tags (requests, updates) or koanf tags (config) in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "koanf"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	validate.RegisterValidation("bottoken", validateBotTokenField)
}

// validateBotTokenField is a validator.Func for bot token format.
func validateBotTokenField(fl validator.FieldLevel) bool {
	token := fl.Field().String()
	if token == "" {
		return true // Let 'required' handle empty
	}
	return ValidateBotToken(SecretToken(token)) == nil
}

// validateStruct runs the shared validator and flattens its errors into
// "field: rule" messages.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		ns := fe.Namespace()
		// Drop the root struct name: "SendMessage.chat_id" -> "chat_id"
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", ns, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", ns, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

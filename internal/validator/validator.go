package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/stemsi/signquest-backend/internal/model"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// RoomCodeAlphabet is the symbol set of generated room codes.
const RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength is the length of generated room codes.
const RoomCodeLength = 5

// Setup registers the validator, custom tags and English translations on
// Gin's binding engine. Call once during application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("session_mode", validateSessionMode)
	_ = v.RegisterValidation("room_code", validateRoomCode)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	registerMessage(v, "session_mode", "{0} must be one of tutorial, practice, evaluation, multiplayer")
	registerMessage(v, "room_code", "{0} must be a 5 character room code")
}

// IsRoomCode reports whether s looks like a generated room code.
func IsRoomCode(s string) bool {
	if len(s) != RoomCodeLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(RoomCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func validateSessionMode(fl govalidator.FieldLevel) bool {
	switch model.SessionMode(fl.Field().String()) {
	case model.ModeTutorial, model.ModePractice, model.ModeEvaluation, model.ModeMultiplayer:
		return true
	default:
		return false
	}
}

func validateRoomCode(fl govalidator.FieldLevel) bool {
	return IsRoomCode(fl.Field().String())
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error { return ut.Add(tag, text, true) },
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable message. Non-validation errors come back
// under "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Error()
			}
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

package setup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PolicyKeyLength is the length of a policy key in hex characters.
const PolicyKeyLength = 56

var policyKeyPattern = regexp.MustCompile(`^[a-f0-9]{56}$`)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to validateStruct.
var v = validator.New()

func init() {
	if err := v.RegisterValidation("policykey", func(fl validator.FieldLevel) bool {
		return policyKeyPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register policykey validation: %v", err))
	}
}

// ValidPolicyKey reports whether key is 56 lowercase hex characters.
func ValidPolicyKey(key string) bool {
	return policyKeyPattern.MatchString(key)
}

// validateStruct validates s using its validate tags and returns a
// human-readable error naming each failed field.
func validateStruct(s any) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

package tenancy

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Name regexes from spec.md §3. Validated eagerly at create time so every
// identifier propagated elsewhere in the system is already well-formed.
var (
	tenantNameRe    = regexp.MustCompile(`^[A-Za-z]([A-Za-z0-9_-]{0,126}[A-Za-z0-9])?$`)
	namespaceNameRe = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,61}[a-z0-9])?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tenantname", func(fl validator.FieldLevel) bool {
		return tenantNameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nsname", func(fl validator.FieldLevel) bool {
		return namespaceNameRe.MatchString(fl.Field().String())
	})
	return v
}

type tenantNameInput struct {
	Name string `validate:"required,tenantname"`
}

type namespaceNameInput struct {
	Name string `validate:"required,nsname"`
}

// validateTenantName eagerly validates a candidate tenant name against
// spec.md §3: 1-128 chars, letter start, [A-Za-z0-9_-], no trailing -/_.
func validateTenantName(name string) error {
	if err := validate.Struct(tenantNameInput{Name: name}); err != nil {
		return &InvalidNameError{Field: "tenant.name", Value: name, Reason: "must start with a letter, contain only letters/digits/_/-, be 1-128 chars, and not end in _ or -"}
	}
	return nil
}

// validateNamespaceName eagerly validates a candidate namespace name against
// spec.md §3: 1-63 chars, lowercase-letter start, [a-z0-9-], no trailing -.
func validateNamespaceName(name string) error {
	if err := validate.Struct(namespaceNameInput{Name: name}); err != nil {
		return &InvalidNameError{Field: "namespace.name", Value: name, Reason: "must start with a lowercase letter, contain only lowercase letters/digits/-, be 1-63 chars, and not end in -"}
	}
	return nil
}

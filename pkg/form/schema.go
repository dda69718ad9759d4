package form

import "fmt"

// Variant identifies which screen a form belongs to.
type Variant string

const (
	VariantSignup Variant = "signup"
	VariantLogin  Variant = "login"
)

const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldRememberMe      = "rememberMe"
)

// FieldRule lists the validators of one field, run in order until the first failure.
// Dependents are re-validated whenever this field changes.
type FieldRule struct {
	Name       string
	Validators []Validator
	Dependents []string
}

// Schema is the typed shape of a form variant.
type Schema struct {
	Variant Variant
	Fields  []FieldRule

	// FailureMessage is the form-level message shown after a remote failure.
	FailureMessage string
}

func (s Schema) rule(name string) (FieldRule, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// ValidateField runs the rule of a single field.
func (s Schema) ValidateField(name string, values map[string]string) error {
	rule, ok := s.rule(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	for _, v := range rule.Validators {
		if err := v(name, values[name], values); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs every field rule and returns the failures keyed by field.
// One invalid field never hides the result of another.
func (s Schema) Validate(values map[string]string) map[string]*FieldError {
	errs := make(map[string]*FieldError)
	for _, f := range s.Fields {
		if err := s.ValidateField(f.Name, values); err != nil {
			if fe, ok := err.(*FieldError); ok {
				errs[f.Name] = fe
			}
		}
	}
	return errs
}

var schemas = map[Variant]Schema{
	VariantSignup: {
		Variant: VariantSignup,
		Fields: []FieldRule{
			{Name: FieldFullName, Validators: []Validator{Required("Full name is required")}},
			{Name: FieldEmail, Validators: []Validator{
				Required("Email is required"),
				Email("Email address is invalid"),
			}},
			{
				Name:       FieldPassword,
				Validators: []Validator{Required("Password is required")},
				Dependents: []string{FieldConfirmPassword},
			},
			{Name: FieldConfirmPassword, Validators: []Validator{
				Required("Please confirm your password"),
				MatchField(FieldPassword, "Passwords do not match"),
			}},
		},
		FailureMessage: "Signup failed. Please try again.",
	},
	VariantLogin: {
		Variant: VariantLogin,
		Fields: []FieldRule{
			{Name: FieldEmail, Validators: []Validator{
				Required("Email is required"),
				Email("Email address is invalid"),
			}},
			{Name: FieldPassword, Validators: []Validator{Required("Password is required")}},
			{Name: FieldRememberMe},
		},
		FailureMessage: "Login failed. Please try again.",
	},
}

// SchemaFor returns the schema of a known variant.
func SchemaFor(v Variant) (Schema, error) {
	s, ok := schemas[v]
	if !ok {
		return Schema{}, fmt.Errorf("unknown form variant %q", v)
	}
	return s, nil
}

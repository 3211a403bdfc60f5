package validator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"golang.org/x/oauth2/google"
)

// Validator wraps go-playground validator
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// New creates a new validator instance with the resource field rules registered
func New() *Validator {
	v := validator.New()

	// Register custom tag name function to use json tags
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "tcpport", isTCPPort)
	mustRegister(v, "rolearn", isRoleARN)
	mustRegister(v, "mongouri", isMongoURI)
	mustRegister(v, "gcpcreds", isGCPServiceAccount)
	mustRegister(v, "emaillist", emailList(v))

	return &Validator{
		validate: v,
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validator: register %s: %v", tag, err))
	}
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := v.validate.Struct(i)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: msgForTag(err.Field(), err.Tag(), err.Param()),
			})
		}
	}

	return validationErrors
}

// ValidateVar validates a single variable
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// CheckField validates one named configuration value against rule. The value
// is left out of the result when sensitive is set.
func (v *Validator) CheckField(name, value, rule string, sensitive bool) *ValidationError {
	if rule == "" {
		return nil
	}
	err := v.validate.Var(value, rule)
	if err == nil {
		return nil
	}

	ve := &ValidationError{Field: name, Tag: rule}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		ve.Tag = errs[0].Tag()
		ve.Message = msgForTag(name, errs[0].Tag(), errs[0].Param())
	} else {
		ve.Message = fmt.Sprintf("%s is invalid", name)
	}
	if !sensitive {
		ve.Value = value
	}
	return ve
}

// msgForTag returns a human-readable message for a validation tag
func msgForTag(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "emaillist":
		return fmt.Sprintf("%s must be a comma-separated list of email addresses", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	case "tcpport":
		return fmt.Sprintf("%s must be a port number between 1 and 65535", field)
	case "hostname_rfc1123", "ip", "hostname_rfc1123|ip":
		return fmt.Sprintf("%s must be a hostname or IP address", field)
	case "boolean":
		return fmt.Sprintf("%s must be true or false", field)
	case "rolearn":
		return fmt.Sprintf("%s must be an IAM role ARN (arn:aws:iam::<account>:role/<name>)", field)
	case "mongouri":
		return fmt.Sprintf("%s must be a mongodb:// or mongodb+srv:// connection string", field)
	case "gcpcreds":
		return fmt.Sprintf("%s must be a service account key in JSON form", field)
	case "numeric":
		return fmt.Sprintf("%s must be a valid numeric value", field)
	default:
		return fmt.Sprintf("%s failed validation for tag: %s", field, tag)
	}
}

func isTCPPort(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n >= 1 && n <= 65535
}

func isRoleARN(fl validator.FieldLevel) bool {
	a, err := arn.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return a.Service == "iam" && strings.HasPrefix(a.Resource, "role/")
}

func isMongoURI(fl validator.FieldLevel) bool {
	_, err := connstring.ParseAndValidate(fl.Field().String())
	return err == nil
}

func isGCPServiceAccount(fl validator.FieldLevel) bool {
	_, err := google.JWTConfigFromJSON([]byte(fl.Field().String()))
	return err == nil
}

func emailList(v *validator.Validate) validator.Func {
	return func(fl validator.FieldLevel) bool {
		for _, addr := range strings.Split(fl.Field().String(), ",") {
			if err := v.Var(strings.TrimSpace(addr), "required,email"); err != nil {
				return false
			}
		}
		return true
	}
}

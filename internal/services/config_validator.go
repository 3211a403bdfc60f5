package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/validator"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
)

// Mode is the dialog mode a configuration is validated for.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// ValidationResult holds field-keyed errors and warnings. Any error blocks
// submission; warnings are informational.
type ValidationResult struct {
	Errors   map[string]string `json:"errors,omitempty"`
	Warnings map[string]string `json:"warnings,omitempty"`
}

// OK reports whether the configuration may be submitted.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err returns a VALIDATION_ERROR carrying the field errors, or nil.
func (r *ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	fields := make([]string, 0, len(r.Errors))
	for f := range r.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return errors.Validation(
		fmt.Sprintf("invalid configuration: %s", strings.Join(fields, ", ")),
		r.Errors,
	)
}

func (r *ValidationResult) addError(field, msg string) {
	if r.Errors == nil {
		r.Errors = map[string]string{}
	}
	if _, exists := r.Errors[field]; !exists {
		r.Errors[field] = msg
	}
}

func (r *ValidationResult) addWarning(field, msg string) {
	if r.Warnings == nil {
		r.Warnings = map[string]string{}
	}
	r.Warnings[field] = msg
}

// ConfigValidator decides which fields a configuration needs and whether a
// field map is acceptable.
type ConfigValidator struct {
	rules *validator.Validator
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{rules: validator.New()}
}

// RequiredFields returns the sorted names of the fields that must be
// non-empty for kind under mode and sel.
func (cv *ConfigValidator) RequiredFields(kind resource.ServiceKind, mode Mode, sel registry.Selection) []string {
	var out []string
	for _, f := range registry.Lookup(kind).Resolve(sel) {
		if isRequired(f, mode) {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

func isRequired(f registry.FieldSpec, mode Mode) bool {
	if !f.Required {
		return false
	}
	return mode == ModeCreate || !f.Sensitive
}

// Validate checks fields against the field set resolved for sel. original
// is the resource being edited and is only consulted in edit mode.
//
// Keys that no variant of kind declares are ignored. Keys that belong to an
// inactive variant are rejected so stale input never reaches the server.
func (cv *ConfigValidator) Validate(kind resource.ServiceKind, mode Mode, sel registry.Selection, fields resource.Fields, original *resource.Resource) *ValidationResult {
	result := &ValidationResult{}
	entry := registry.Lookup(kind)

	if !entry.Activated {
		result.addError("service", fmt.Sprintf("%s is not available yet", kind))
		return result
	}

	discriminators := entry.Discriminators(sel)
	active := map[string]bool{}

	for _, f := range entry.Resolve(sel) {
		active[f.Name] = true
		value := strings.TrimSpace(fields[f.Name])

		if want, ok := discriminators[f.Name]; ok {
			if value != "" && value != want {
				result.addError(f.Name, fmt.Sprintf("%s is %q but %q is selected", labelOf(f), value, want))
			}
			continue
		}

		if value == "" {
			if isRequired(f, mode) {
				result.addError(f.Name, fmt.Sprintf("%s is required", labelOf(f)))
			}
			continue
		}

		if ve := cv.rules.CheckField(f.Name, value, f.Rule, f.Sensitive); ve != nil {
			result.addError(f.Name, ve.Message)
		}

		if mode == ModeEdit && f.Identity {
			result.addWarning(f.Name, fmt.Sprintf("%s identifies this resource and cannot be changed", labelOf(f)))
			if original != nil {
				if prev := original.Config[f.Name]; prev != "" && prev != value {
					result.addError(f.Name, fmt.Sprintf("%s cannot be changed after the resource is created", labelOf(f)))
				}
			}
		}
	}

	for name := range entry.VariantFields() {
		if !active[name] && strings.TrimSpace(fields[name]) != "" {
			result.addError(name, fmt.Sprintf("%s does not apply to the selected options; clear it", name))
		}
	}

	return result
}

// ValidateDraft validates a draft's payload in the draft's mode.
func (cv *ConfigValidator) ValidateDraft(d *Draft) *ValidationResult {
	result := cv.Validate(d.Kind, d.Mode, d.Selection, d.Payload(), d.Original)
	if strings.TrimSpace(d.Name) == "" {
		result.addError("name", "Name is required")
	}
	return result
}

func labelOf(f registry.FieldSpec) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

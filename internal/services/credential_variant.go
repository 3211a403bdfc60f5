package services

import (
	"fmt"
	"strings"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
)

// Draft is a pending configuration for one connect or edit dialog. Only the
// active variants' fields survive a selection change.
type Draft struct {
	Kind      resource.ServiceKind
	Mode      Mode
	Name      string
	Selection registry.Selection
	Fields    resource.Fields

	// Original is the resource being edited. Nil in create mode.
	Original *resource.Resource
}

// NewDraft starts a create-mode draft with every discriminator at its default.
func NewDraft(kind resource.ServiceKind) *Draft {
	d := &Draft{
		Kind:   kind,
		Mode:   ModeCreate,
		Fields: resource.Fields{},
	}
	d.applySelection()
	return d
}

// EditDraft starts an edit-mode draft from an existing resource. The active
// variants are reconstructed from the persisted config.
func EditDraft(r *resource.Resource) *Draft {
	fields := r.Config.Clone()
	d := &Draft{
		Kind:      r.Kind,
		Mode:      ModeEdit,
		Name:      r.Name,
		Selection: InferSelection(r.Kind, fields),
		Fields:    fields,
		Original:  r,
	}
	d.applySelection()
	return d
}

// InferSelection reconstructs the (primary, secondary, credential) path
// from persisted fields. Missing discriminators fall back to defaults.
func InferSelection(kind resource.ServiceKind, fields resource.Fields) registry.Selection {
	entry := registry.Lookup(kind)
	var sel registry.Selection

	if entry.Primary != nil {
		if opt := entry.Primary.Option(fields[entry.Primary.Key]); opt != nil {
			sel.Primary = opt.Value
			if opt.Secondary != nil {
				if sec := opt.Secondary.Option(fields[opt.Secondary.Key]); sec != nil {
					sel.Secondary = sec.Value
				}
			}
		}
	}
	if entry.UsesCredentials(sel) {
		sel.Credential = InferCredentialVariant(fields)
	}
	return sel
}

// InferCredentialVariant picks the credential variant of a persisted config.
// An explicit, recognised "type" wins. Otherwise a non-empty file path means
// config_file_path, then non-empty file content means config_file_content,
// and anything else is access_key.
func InferCredentialVariant(fields resource.Fields) string {
	if t := fields[resource.FieldCredentialType]; t != "" {
		if registry.CredentialVariants.Option(t) != nil {
			return t
		}
	}
	if strings.TrimSpace(fields[resource.FieldConfigFilePath]) != "" {
		return registry.CredentialConfigFilePath
	}
	if strings.TrimSpace(fields[resource.FieldConfigFileContent]) != "" {
		return registry.CredentialConfigFileContent
	}
	return registry.CredentialAccessKey
}

// Set assigns one field value.
func (d *Draft) Set(key, value string) {
	d.Fields[key] = value
}

// SelectCredential switches the active credential variant and clears every
// field that belongs to a different variant and not to the new one.
func (d *Draft) SelectCredential(variant string) error {
	if !d.entry().UsesCredentials(d.Selection) {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("%s does not take a credential type", d.Kind))
	}
	if err := checkOption(registry.CredentialVariants, variant); err != nil {
		return err
	}
	d.Selection.Credential = variant
	d.applySelection()
	return nil
}

// SelectPrimary switches the primary discriminator (e.g. cluster mode). The
// secondary choice resets to its default.
func (d *Draft) SelectPrimary(value string) error {
	e := d.entry()
	if e.Primary == nil {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("%s has no variant options", d.Kind))
	}
	if err := checkOption(e.Primary, value); err != nil {
		return err
	}
	if value != d.Selection.Primary {
		d.Selection.Secondary = ""
	}
	d.Selection.Primary = value
	d.applySelection()
	return nil
}

// SelectSecondary switches the secondary discriminator under the current
// primary choice.
func (d *Draft) SelectSecondary(value string) error {
	e := d.entry()
	var sec *registry.Discriminator
	if e.Primary != nil {
		if opt := e.Primary.Option(d.Selection.Primary); opt != nil {
			sec = opt.Secondary
		}
	}
	if sec == nil {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("%s has no secondary option here", d.Kind))
	}
	if err := checkOption(sec, value); err != nil {
		return err
	}
	d.Selection.Secondary = value
	d.applySelection()
	return nil
}

// Payload returns the config to send. Empty values are dropped, so in edit
// mode an empty sensitive field means "leave unchanged". Discriminators are
// always included.
func (d *Draft) Payload() resource.Fields {
	out := resource.Fields{}
	for k, v := range d.Fields {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	for k, v := range d.entry().Discriminators(d.Selection) {
		out[k] = v
	}
	return out
}

func (d *Draft) entry() *registry.Entry {
	return registry.Lookup(d.Kind)
}

// applySelection resolves defaults, writes discriminator values and drops
// fields of inactive variants.
func (d *Draft) applySelection() {
	e := d.entry()
	discriminators := e.Discriminators(d.Selection)

	if v, ok := discriminators[registry.CredentialVariants.Key]; ok {
		d.Selection.Credential = v
	} else {
		d.Selection.Credential = ""
	}
	if e.Primary != nil {
		d.Selection.Primary = discriminators[e.Primary.Key]
		if opt := e.Primary.Option(d.Selection.Primary); opt != nil && opt.Secondary != nil {
			d.Selection.Secondary = discriminators[opt.Secondary.Key]
		}
	}

	active := map[string]bool{}
	for _, f := range e.Resolve(d.Selection) {
		active[f.Name] = true
	}
	for name := range e.VariantFields() {
		if !active[name] {
			delete(d.Fields, name)
		}
	}
	for k, v := range discriminators {
		d.Fields[k] = v
	}
}

func checkOption(d *registry.Discriminator, value string) error {
	for _, v := range d.Values() {
		if v == value {
			return nil
		}
	}
	return errors.Validation(
		fmt.Sprintf("%q is not a valid %s", value, strings.ToLower(d.Label)),
		map[string]string{d.Key: fmt.Sprintf("must be one of [%s]", strings.Join(d.Values(), " "))},
	)
}

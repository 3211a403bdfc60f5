// Package registry declares, for every service kind, its category,
// capabilities, and configuration shape.
package registry

import (
	"fmt"
	"strings"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
)

// FieldSpec describes one configuration field.
type FieldSpec struct {
	Name  string
	Label string
	// Required at create time. Sensitive fields become optional on edit.
	Required  bool
	Sensitive bool
	// Identity fields key the resource on the backend and are read-only on edit.
	Identity bool
	// Rule is a validator tag checked when the value is non-empty.
	Rule string
}

// Option is one value of a Discriminator and the fields it brings in.
type Option struct {
	Value     string
	Label     string
	Fields    []FieldSpec
	Secondary *Discriminator
	// Credentials enables the credential variant selection under this option.
	Credentials bool
}

// Discriminator selects between mutually exclusive field sets.
type Discriminator struct {
	Key     string
	Label   string
	Default string
	Options []Option
}

// Option returns the option with the given value, or the default one.
func (d *Discriminator) Option(value string) *Option {
	if value == "" {
		value = d.Default
	}
	for i := range d.Options {
		if d.Options[i].Value == value {
			return &d.Options[i]
		}
	}
	return nil
}

// Values lists the option values in declaration order.
func (d *Discriminator) Values() []string {
	vals := make([]string, len(d.Options))
	for i, o := range d.Options {
		vals[i] = o.Value
	}
	return vals
}

// Entry is the registry record for one service kind.
type Entry struct {
	Kind           resource.ServiceKind
	Category       resource.Category
	Activated      bool
	BuiltIn        bool
	Discoverable   bool
	StorageCapable bool
	DocsPath       string
	Fields         []FieldSpec
	Primary        *Discriminator
	// Credentials enables the credential variant selection for the whole kind.
	Credentials bool
}

// DocsURL joins the entry's docs path onto base.
func (e *Entry) DocsURL(base string) string {
	if e.DocsPath == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(e.DocsPath, "/")
}

// Selection is the resolved (primary, secondary, credential) variant path.
// Empty values fall back to each discriminator's default.
type Selection struct {
	Primary    string
	Secondary  string
	Credential string
}

var entries = map[resource.ServiceKind]*Entry{}

func register(e *Entry) {
	if _, dup := entries[e.Kind]; dup {
		panic(fmt.Sprintf("registry: duplicate entry for %s", e.Kind))
	}
	entries[e.Kind] = e
}

// Lookup returns the entry for kind. Every resource.ServiceKind is
// registered, so an unknown kind is a programming error and panics.
func Lookup(kind resource.ServiceKind) *Entry {
	e, ok := entries[kind]
	if !ok {
		panic(fmt.Sprintf("registry: unknown service kind %q", kind))
	}
	return e
}

// All returns every entry in resource.AllKinds order.
func All() []*Entry {
	out := make([]*Entry, 0, len(resource.AllKinds))
	for _, k := range resource.AllKinds {
		out = append(out, Lookup(k))
	}
	return out
}

// Resolve returns the fields that apply to sel: the base fields, the fields
// of each selected discriminator option, and the active credential variant's
// fields. Discriminator keys themselves are included as required fields.
func (e *Entry) Resolve(sel Selection) []FieldSpec {
	fields := append([]FieldSpec(nil), e.Fields...)
	creds := e.Credentials

	if e.Primary != nil {
		fields = append(fields, discriminatorField(e.Primary))
		if opt := e.Primary.Option(sel.Primary); opt != nil {
			fields = append(fields, opt.Fields...)
			creds = creds || opt.Credentials
			if opt.Secondary != nil {
				fields = append(fields, discriminatorField(opt.Secondary))
				if sec := opt.Secondary.Option(sel.Secondary); sec != nil {
					fields = append(fields, sec.Fields...)
					creds = creds || sec.Credentials
				}
			}
		}
	}

	if creds {
		fields = append(fields, discriminatorField(CredentialVariants))
		if v := CredentialVariants.Option(sel.Credential); v != nil {
			fields = append(fields, v.Fields...)
		}
	}
	return fields
}

// Discriminators returns the resolved value of every discriminator on the
// path selected by sel, keyed by field name. Empty selections resolve to
// defaults.
func (e *Entry) Discriminators(sel Selection) map[string]string {
	out := map[string]string{}
	creds := e.Credentials

	if e.Primary != nil {
		if opt := e.Primary.Option(sel.Primary); opt != nil {
			out[e.Primary.Key] = opt.Value
			creds = creds || opt.Credentials
			if opt.Secondary != nil {
				if sec := opt.Secondary.Option(sel.Secondary); sec != nil {
					out[opt.Secondary.Key] = sec.Value
					creds = creds || sec.Credentials
				}
			}
		}
	}
	if creds {
		if v := CredentialVariants.Option(sel.Credential); v != nil {
			out[CredentialVariants.Key] = v.Value
		}
	}
	return out
}

// UsesCredentials reports whether sel leads to a credential variant choice.
func (e *Entry) UsesCredentials(sel Selection) bool {
	for _, f := range e.Resolve(sel) {
		if f.Name == CredentialVariants.Key {
			return true
		}
	}
	return false
}

// VariantFields returns the names of every field that belongs to some
// discriminator option or credential variant of this entry, whether active
// or not.
func (e *Entry) VariantFields() map[string]bool {
	names := map[string]bool{}
	creds := e.Credentials
	var walk func(d *Discriminator)
	walk = func(d *Discriminator) {
		for _, o := range d.Options {
			for _, f := range o.Fields {
				names[f.Name] = true
			}
			creds = creds || o.Credentials
			if o.Secondary != nil {
				names[o.Secondary.Key] = true
				walk(o.Secondary)
			}
		}
	}
	if e.Primary != nil {
		walk(e.Primary)
	}
	if creds && !e.Credentials {
		names[CredentialVariants.Key] = true
	}
	if creds {
		for _, o := range CredentialVariants.Options {
			for _, f := range o.Fields {
				names[f.Name] = true
			}
		}
	}
	return names
}

// Field looks up a field by name among every field the entry can carry.
func (e *Entry) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	var found *FieldSpec
	var walk func(d *Discriminator)
	walk = func(d *Discriminator) {
		if d.Key == name {
			f := discriminatorField(d)
			found = &f
		}
		for _, o := range d.Options {
			for i := range o.Fields {
				if o.Fields[i].Name == name && found == nil {
					found = &o.Fields[i]
				}
			}
			if o.Secondary != nil {
				walk(o.Secondary)
			}
		}
	}
	if e.Primary != nil {
		walk(e.Primary)
	}
	walk(CredentialVariants)
	if found == nil {
		return FieldSpec{}, false
	}
	return *found, true
}

func discriminatorField(d *Discriminator) FieldSpec {
	return FieldSpec{
		Name:     d.Key,
		Label:    d.Label,
		Required: true,
		Rule:     "oneof=" + strings.Join(d.Values(), " "),
	}
}

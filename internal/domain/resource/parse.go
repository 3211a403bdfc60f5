package resource

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type condaPayload struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Config    map[string]interface{} `json:"config"`
	ExecState ExecState              `json:"exec_state"`
}

// ParseConda extracts the Conda sub-resource serialized on the default
// compute resource. It returns nil when none is registered.
func ParseConda(server Fields) (*Resource, error) {
	raw := server[FieldCondaConfig]
	if raw == "" {
		return nil, nil
	}

	var p condaPayload
	if err := json.UnmarshalFromString(raw, &p); err != nil {
		return nil, err
	}
	cfg, err := FieldsFrom(p.Config)
	if err != nil {
		return nil, err
	}

	return &Resource{
		ID:        p.ID,
		Kind:      KindConda,
		Name:      p.Name,
		Config:    cfg,
		ExecState: p.ExecState,
	}, nil
}

// FieldsFrom converts decoded JSON config values to Fields. Numbers and
// booleans are formatted as strings; nested objects and arrays are rejected.
func FieldsFrom(raw map[string]interface{}) (Fields, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("config field %q is not a scalar", k)
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("config field %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

// Resolve interprets a listed record. Errors are scoped to this one record:
// UNKNOWN_SERVICE for an unsupported kind, MALFORMED_RESOURCE for a config
// that cannot be decoded.
func Resolve(rec Record) (*Resource, error) {
	kind, err := ParseServiceKind(rec.Service)
	if err != nil {
		return nil, err
	}
	if rec.ConfigErr != nil {
		return nil, errors.MalformedResource(rec.ID, rec.ConfigErr)
	}
	if _, err := DecodeConfig(kind, rec.Config); err != nil {
		return nil, errors.MalformedResource(rec.ID, err)
	}

	r := &Resource{
		ID:        rec.ID,
		Kind:      kind,
		Name:      rec.Name,
		Config:    rec.Config,
		CreatedAt: rec.CreatedAt,
		ExecState: rec.ExecState,
	}
	if r.Config == nil {
		r.Config = Fields{}
	}
	if r.ExecState.Status == "" {
		r.ExecState.Status = ExecUnknown
	}

	if kind == KindServer {
		conda, err := ParseConda(r.Config)
		if err != nil {
			return nil, errors.MalformedResource(rec.ID, err)
		}
		r.Conda = conda
	}
	return r, nil
}

// TabularData is a previewed object in table-schema form.
type TabularData struct {
	Schema TableSchema              `json:"schema"`
	Data   []map[string]interface{} `json:"data"`
}

type TableSchema struct {
	Fields []ColumnSchema `json:"fields"`
}

type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Columns returns the column names in schema order.
func (t *TabularData) Columns() []string {
	cols := make([]string, len(t.Schema.Fields))
	for i, f := range t.Schema.Fields {
		cols[i] = f.Name
	}
	return cols
}

// ParseTabular decodes a preview payload.
func ParseTabular(payload []byte) (*TabularData, error) {
	var t TabularData
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

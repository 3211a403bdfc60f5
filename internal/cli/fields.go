package cli

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
)

// parseFieldFlags turns repeated --field key=value flags into Fields. A value
// of the form @path is replaced by the contents of that file.
func parseFieldFlags(fs afero.Fs, pairs []string) (resource.Fields, error) {
	fields := resource.Fields{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q, expected key=value", pair)
		}
		if strings.HasPrefix(value, "@") {
			data, err := afero.ReadFile(fs, value[1:])
			if err != nil {
				return nil, fmt.Errorf("read value of %s: %w", key, err)
			}
			value = string(data)
		}
		fields[key] = value
	}
	return fields, nil
}

// parseDSN maps a postgres:// connection URL onto the SQL connection fields.
func parseDSN(dsn string) (resource.Fields, error) {
	conninfo, err := pq.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN: %w", err)
	}

	kv, err := parseConninfo(conninfo)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN: %w", err)
	}

	fields := resource.Fields{"port": "5432"}
	rename := map[string]string{
		"host":     "host",
		"port":     "port",
		"dbname":   "database",
		"user":     "username",
		"password": "password",
	}
	for k, v := range kv {
		if name, ok := rename[k]; ok {
			fields[name] = v
		}
	}
	return fields, nil
}

// parseConninfo reads the key='value' pairs produced by pq.ParseURL.
func parseConninfo(s string) (map[string]string, error) {
	out := map[string]string{}
	for i := 0; i < len(s); {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("missing '=' in %q", s[i:])
		}
		key := s[i : i+eq]
		i += eq + 1

		var val strings.Builder
		if i < len(s) && s[i] == '\'' {
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					val.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == '\'' {
					closed = true
					break
				}
				val.WriteByte(c)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated value for %s", key)
			}
		} else {
			for i < len(s) && s[i] != ' ' {
				val.WriteByte(s[i])
				i++
			}
		}
		out[key] = val.String()
	}
	return out, nil
}

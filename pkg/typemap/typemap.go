// Package typemap loads the column-to-type mapping that drives casting.
//
// The file is a flat object of column name to type name, e.g.
//
//	{"age": "integer", "create_date": "timestamp", "update_date": "timestamp"}
//
// JSON, YAML (.yaml, .yml) and TOML (.toml) are accepted; other extensions are
// read as JSON.
package typemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

var ErrMalformed = errors.New("malformed type mapping")

// Entry maps one column to a target kind.
type Entry struct {
	Column   string
	TypeName string
	Kind     ds.Kind
}

// Mapping is sorted by column name.
type Mapping []Entry

// Columns lists the mapped column names.
func (m Mapping) Columns() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Column
	}
	return out
}

// Lookup returns the entry for column.
func (m Mapping) Lookup(column string) (Entry, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].Column >= column })
	if i < len(m) && m[i].Column == column {
		return m[i], true
	}
	return Entry{}, false
}

// Load reads and validates a mapping file.
func Load(path string) (Mapping, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decode(filepath.Ext(path), b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	flat := make(map[string]string, len(raw))
	for col, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: column %q: want a type name, got %T", ErrMalformed, path, col, v)
		}
		flat[col] = s
	}
	m, err := Parse(flat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func decode(ext string, b []byte) (map[string]any, error) {
	var raw map[string]any
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	case ".toml":
		err = toml.Unmarshal(b, &raw)
	default:
		err = json.Unmarshal(b, &raw)
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected an object of column to type")
	}
	return raw, nil
}

// Parse resolves type names into a Mapping.
func Parse(m map[string]string) (Mapping, error) {
	out := make(Mapping, 0, len(m))
	for col, name := range m {
		if strings.TrimSpace(col) == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrMalformed)
		}
		k, err := ds.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out = append(out, Entry{Column: col, TypeName: name, Kind: k})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out, nil
}

// Package catalog holds allowed-value catalogs: for each column of a dataset,
// the ordered list of raw values the column may contain. Catalogs are read
// from one document per dataset (JSON or YAML) and are immutable once built.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Domain is the allowed-value list of one column.
type Domain struct {
	Values []string
	set    map[string]struct{}
}

func newDomain(values []string) Domain {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Domain{Values: values, set: set}
}

// Allows reports whether v is listed. Comparison is exact.
func (d Domain) Allows(v string) bool {
	_, ok := d.set[v]
	return ok
}

// Catalog maps column names to domains. The zero value is an empty catalog.
type Catalog struct {
	columns []string
	domains map[string]Domain
}

// New builds a catalog from a map. Columns are ordered by name.
func New(m map[string][]string) Catalog {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	var c Catalog
	for _, k := range cols {
		c.set(k, m[k])
	}
	return c
}

func (c *Catalog) set(column string, values []string) {
	if c.domains == nil {
		c.domains = map[string]Domain{}
	}
	if _, dup := c.domains[column]; !dup {
		c.columns = append(c.columns, column)
	}
	c.domains[column] = newDomain(values)
}

// Lookup returns the domain for column. Matching is exact.
func (c Catalog) Lookup(column string) (Domain, bool) {
	d, ok := c.domains[column]
	return d, ok
}

// Columns returns the catalog's columns: document order for parsed
// catalogs, name order for ones built with New.
func (c Catalog) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Len returns the number of columns.
func (c Catalog) Len() int { return len(c.columns) }

// ErrFormat wraps every document decoding failure.
var ErrFormat = errors.New("catalog: malformed document")

// Parse decodes a catalog document. format is a file extension; ".yaml" and
// ".yml" select YAML, anything else JSON. The document is a single object
// whose keys are column names and whose values are arrays of scalars.
// Numbers keep their source text, so 1.0 stays "1.0".
func Parse(b []byte, format string) (Catalog, error) {
	switch strings.ToLower(format) {
	case ".yaml", ".yml":
		return parseYAML(b)
	default:
		return parseJSON(b)
	}
}

func parseJSON(b []byte) (Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Catalog{}, fmt.Errorf("%w: top level must be an object", ErrFormat)
	}

	var c Catalog
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return Catalog{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		key := kt.(string) // object keys are always strings
		var raw []any
		if err := dec.Decode(&raw); err != nil {
			return Catalog{}, fmt.Errorf("%w: column %q: %v", ErrFormat, key, err)
		}
		values := make([]string, len(raw))
		for i, v := range raw {
			s, err := jsonScalar(v)
			if err != nil {
				return Catalog{}, fmt.Errorf("%w: column %q[%d]: %v", ErrFormat, key, i, err)
			}
			values[i] = s
		}
		c.set(key, values)
	}
	if _, err := dec.Token(); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return c, nil
}

func jsonScalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", errors.New("null is not an allowed value")
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func parseYAML(b []byte) (Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(doc.Content) == 0 {
		return Catalog{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Catalog{}, fmt.Errorf("%w: top level must be a mapping", ErrFormat)
	}

	var c Catalog
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		if val.Kind != yaml.SequenceNode {
			return Catalog{}, fmt.Errorf("%w: column %q (line %d): want a list", ErrFormat, key, val.Line)
		}
		values := make([]string, len(val.Content))
		for j, n := range val.Content {
			if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
				return Catalog{}, fmt.Errorf("%w: column %q[%d] (line %d): want a scalar", ErrFormat, key, j, n.Line)
			}
			values[j] = n.Value
		}
		c.set(key, values)
	}
	return c, nil
}

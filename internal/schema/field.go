// Package schema describes the shape of a target table: the ordered list of
// field descriptors that fixes both the INSERT column order and the coercion
// applied to each raw CSV value.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the coercion applied to a column's raw values.
type Kind string

const (
	Integer Kind = "INTEGER"
	Text    Kind = "TEXT"
)

// ErrUnknownKind is returned when a descriptor names a type tag other than
// INTEGER or TEXT. It surfaces when configuration is loaded, never per row.
var ErrUnknownKind = errors.New("unknown field kind")

// ParseKind maps a type tag to a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Integer):
		return Integer, nil
	case string(Text):
		return Text, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Field is a single column descriptor.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

func (f Field) String() string { return f.Name + " " + string(f.Kind) }

// UnmarshalJSON accepts both {"name":"school_id","kind":"INTEGER"} and the compact
// "school_id INTEGER" form.
func (f *Field) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		pf, err := ParseField(s)
		if err != nil {
			return err
		}
		*f = pf
		return nil
	}
	var raw struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	k, err := ParseKind(raw.Kind)
	if err != nil {
		return fmt.Errorf("field %q: %w", raw.Name, err)
	}
	*f = Field{Name: raw.Name, Kind: k}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML job files.
func (f *Field) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		pf, err := ParseField(s)
		if err != nil {
			return err
		}
		*f = pf
		return nil
	}
	var raw struct {
		Name string `yaml:"name"`
		Kind string `yaml:"kind"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	k, err := ParseKind(raw.Kind)
	if err != nil {
		return fmt.Errorf("field %q: %w", raw.Name, err)
	}
	*f = Field{Name: raw.Name, Kind: k}
	return nil
}

// ParseField parses the "name TYPE" form. Anything after the type tag
// (e.g. "NOT NULL") is ignored.
func ParseField(s string) (Field, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return Field{}, fmt.Errorf("field %q: want \"name TYPE\"", s)
	}
	k, err := ParseKind(parts[1])
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", parts[0], err)
	}
	return Field{Name: parts[0], Kind: k}, nil
}

// ParseFields parses a list of "name TYPE" strings, stopping at the first
// invalid entry.
func ParseFields(specs []string) ([]Field, error) {
	out := make([]Field, 0, len(specs))
	for i, s := range specs {
		f, err := ParseField(s)
		if err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Names returns the descriptor names in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

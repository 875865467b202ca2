package recipe

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownField is returned by ApplyFields for a field with no setter.
var ErrUnknownField = errors.New("unknown recipe field")

// FieldSetter writes one externally sourced value onto a recipe.
type FieldSetter func(r *Recipe, value string) error

// FieldSetters maps imported field names to their setters.
var FieldSetters = map[string]FieldSetter{
	"name": func(r *Recipe, v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			return errors.New("name must not be empty")
		}
		r.Name = v
		return nil
	},
	"type": func(r *Recipe, v string) error {
		r.Type = strings.TrimSpace(v)
		return nil
	},
	"description": func(r *Recipe, v string) error {
		r.Description = strings.TrimSpace(v)
		return nil
	},
	"mode": func(r *Recipe, v string) error {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			r.Mode = nil
			return nil
		}
		for _, m := range KnownModes {
			if Mode(v) == m {
				r.Mode = m.Ptr()
				return nil
			}
		}
		return fmt.Errorf("invalid mode %q", v)
	},
	"published": func(r *Recipe, v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			r.Published = nil
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid published flag %q", v)
		}
		r.Published = &b
		return nil
	},
	"author": func(r *Recipe, v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			r.Author = nil
			return nil
		}
		r.Author = &Author{Name: v}
		return nil
	},
	"ingredients": func(r *Recipe, v string) error {
		r.Ingredients = r.Ingredients[:0]
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				r.Ingredients = append(r.Ingredients, Ingredient{Name: name})
			}
		}
		return nil
	},
}

// ApplyFields sets every field in fields on r. Field names are matched
// case-insensitively. All fields are attempted; the errors are joined.
func ApplyFields(r *Recipe, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		setter, ok := FieldSetters[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownField, name))
			continue
		}
		if err := setter(r, fields[name]); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// FromFields builds a new recipe from an imported record.
func FromFields(fields map[string]string) (*Recipe, error) {
	r := new(Recipe)
	if err := ApplyFields(r, fields); err != nil {
		return nil, err
	}
	if r.Name == "" {
		return nil, errors.New("field name: required")
	}
	return r, nil
}

package core

import "fmt"

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeMap    FieldType = "map"
	TypeList   FieldType = "list"
	TypeAny    FieldType = "any"
)

// Field describes one entry of an action's input or output schema:
// spec.md §3 "(field, type, required, default, doc)".
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Default  interface{}
	Doc      string
}

// Schema is the ordered field list spec.md §3 calls for. Order is kept
// for callers that list fields (see Names); validation itself does not
// depend on order.
type Schema []Field

// Validate performs open validation (spec.md §4.1 step 4, §7): known
// fields are checked/defaulted, unknown fields pass through unmodified.
// It returns the validated+defaulted mapping (same map identity as the
// input params is never assumed; callers get a fresh Params back).
func (s Schema) Validate(params Params) (Params, *Error) {
	out := params.Clone()
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		seen[f.Name] = true
		v, present := out[f.Name]
		if !present {
			if f.Required {
				return nil, NewError(ValidationError, fmt.Sprintf("missing required field %q", f.Name), map[string]interface{}{
					"field": f.Name,
				})
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		if err := checkType(f, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkType(f Field, v interface{}) *Error {
	if f.Type == TypeAny || v == nil {
		return nil
	}
	ok := false
	switch f.Type {
	case TypeString:
		_, ok = v.(string)
	case TypeInt:
		switch v.(type) {
		case int, int32, int64:
			ok = true
		}
	case TypeFloat:
		switch v.(type) {
		case float32, float64, int, int64:
			ok = true
		}
	case TypeBool:
		_, ok = v.(bool)
	case TypeMap:
		_, ok = v.(map[string]interface{})
		if !ok {
			_, ok = v.(Params)
		}
	case TypeList:
		switch v.(type) {
		case []interface{}:
			ok = true
		}
	default:
		ok = true
	}
	if !ok {
		return NewError(ValidationError, fmt.Sprintf("field %q has wrong type", f.Name), map[string]interface{}{
			"field":    f.Name,
			"expected": f.Type,
			"got":      typeName(v),
		})
	}
	return nil
}

// Names returns the declared field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

package gateway

import (
	"fmt"
	"strings"
)

// SchemaVersion tags every response contract. Bump it whenever a recipe's
// schema changes shape.
const SchemaVersion = "3"

// Type is the JSON type of a schema node.
type Type string

const (
	TypeString Type = "string"
	TypeArray  Type = "array"
	TypeObject Type = "object"
)

// Schema describes the JSON a recipe expects back. The same value is sent to
// the backend as the response schema and used to validate the reply.
type Schema struct {
	Type        Type
	Description string
	Properties  []Property
	Items       *Schema
	// NonEmpty rejects blank strings.
	NonEmpty bool
	// MinItems rejects shorter arrays and MaxItems longer ones. Zero means
	// no bound.
	MinItems int
	MaxItems int
}

// Property is one named field of an object schema.
type Property struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Field returns the named property schema, or nil.
func (s *Schema) Field(name string) *Schema {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// RequiredNames lists required property names in declaration order.
func (s *Schema) RequiredNames() []string {
	var out []string
	for _, p := range s.Properties {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// Validate checks a value decoded by encoding/json into interface{} against
// the schema.
func (s *Schema) Validate(v any) error {
	return s.validate("$", v)
}

func (s *Schema) validate(path string, v any) error {
	switch s.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: expected string", path)
		}
		if s.NonEmpty && strings.TrimSpace(str) == "" {
			return fmt.Errorf("%s: must not be empty", path)
		}
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		if len(items) < s.MinItems {
			return fmt.Errorf("%s: expected at least %d items, got %d", path, s.MinItems, len(items))
		}
		if s.MaxItems > 0 && len(items) > s.MaxItems {
			return fmt.Errorf("%s: expected at most %d items, got %d", path, s.MaxItems, len(items))
		}
		if s.Items != nil {
			for i, item := range items {
				if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
					return err
				}
			}
		}
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object", path)
		}
		for _, p := range s.Properties {
			val, present := obj[p.Name]
			if !present || val == nil {
				if p.Required {
					return fmt.Errorf("%s.%s: missing", path, p.Name)
				}
				continue
			}
			if err := p.Schema.validate(path+"."+p.Name, val); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, s.Type)
	}
	return nil
}

func stringField(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

func textField(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc, NonEmpty: true}
}

func listOf(items *Schema, minItems int, desc string) *Schema {
	return &Schema{Type: TypeArray, Items: items, MinItems: minItems, Description: desc}
}

func exactly(n int, items *Schema, desc string) *Schema {
	return &Schema{Type: TypeArray, Items: items, MinItems: n, MaxItems: n, Description: desc}
}

func objectOf(props ...Property) *Schema {
	return &Schema{Type: TypeObject, Properties: props}
}

func required(name string, s *Schema) Property { return Property{Name: name, Schema: s, Required: true} }
func optional(name string, s *Schema) Property { return Property{Name: name, Schema: s} }

// Response contracts. Count ranges stated only in instructions (35-50 SEO
// keywords, 5-8 event keywords) are not enforced here.
var (
	directorSchema = objectOf(
		optional("title", stringField("Short evocative name for the style, at most six words")),
		required("analysis", textField("Narrative analysis in the requested language")),
		required("prompt", textField("English generation prompt")),
	)

	refineSchema = objectOf(
		required("analysis", textField("Updated narrative analysis in the requested language")),
		required("prompt", textField("Updated English generation prompt")),
	)

	stockSeoSchema = objectOf(
		required("titles", exactly(2, textField("Candidate title"), "Two candidate titles")),
		required("bestTitle", textField("The most commercially suitable title")),
		required("keywords", textField("35 to 50 comma separated keywords")),
	)

	marketInsightSchema = objectOf(
		required("trends", listOf(objectOf(
			required("title", textField("Trend name")),
			required("description", stringField("Why it sells")),
		), 1, "Three trending themes")),
		required("events", listOf(objectOf(
			required("name", textField("Event name")),
			required("keywords", listOf(stringField("Keyword"), 0, "5 to 8 keywords")),
		), 0, "Upcoming events")),
		required("keywords", listOf(stringField("Keyword"), 0, "Ten high frequency keywords")),
		required("advice", stringField("Commercial advice")),
	)

	transcriptSchema = objectOf(
		required("text", stringField("Verbatim transcript")),
	)
)

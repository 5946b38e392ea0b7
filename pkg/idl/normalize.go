package idl

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Parse loads a raw interface description and normalizes it into a Schema.
//
// The raw form is tolerated in several inconsistent shapes observed across
// generator versions: arrays may be missing, enum variants may be bare
// strings, type references may appear as bare primitive names or as
// structured "defined" references, option wrappers may wrap either form, and
// account roles may carry embedded address-derivation metadata. The metadata
// is stripped; the resolver performs derivation explicitly and must not be
// second-guessed by ambiguous embedded hints.
//
// Parse is a pure transform. It fails with *SchemaError only if a referenced
// type name matches neither a primitive nor a declared type after
// normalization, or if a declared discriminator is not exactly eight bytes.
func Parse(doc []byte) (*Schema, error) {
	var raw rawDocument
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal interface description")
	}

	s := &Schema{
		Name:       raw.Name,
		Operations: []Operation{},
		Records:    []RecordType{},
		Enums:      []EnumType{},
	}

	// First pass: declare every named type so references can be resolved
	// regardless of declaration order. Account entries without an inline
	// type body reference a declaration in the types array.
	declared := make(map[string]rawType)
	for _, t := range raw.Types {
		declared[t.Name] = t.Type
	}
	for _, a := range raw.Accounts {
		if a.Type.kind != rawKindUnknown {
			declared[a.Name] = a.Type
		}
	}

	for _, t := range raw.Types {
		switch t.Type.kind {
		case rawKindEnum:
			s.Enums = append(s.Enums, EnumType{
				Name:     t.Name,
				Variants: t.Type.variants,
			})
		case rawKindStruct:
			// Structs in the types array are plain records with no account
			// discriminator unless they also appear as accounts.
			if !containsAccount(raw.Accounts, t.Name) {
				rec, err := s.normalizeRecord(t.Name, nil, t.Type.fields, declared)
				if err != nil {
					return nil, err
				}
				s.Records = append(s.Records, *rec)
			}
		}
	}

	for _, a := range raw.Accounts {
		body := a.Type
		if body.kind == rawKindUnknown {
			var ok bool
			body, ok = declared[a.Name]
			if !ok {
				return nil, schemaErrorf("account %q has no declared layout", a.Name)
			}
		}
		if body.kind != rawKindStruct {
			return nil, schemaErrorf("account %q is not a struct", a.Name)
		}

		disc := []byte(a.Discriminator)
		if len(disc) == 0 {
			disc = recordDiscriminator(a.Name)
		}
		if len(disc) != discriminatorLen {
			return nil, schemaErrorf("account %q discriminator must be %d bytes, got %d", a.Name, discriminatorLen, len(disc))
		}

		rec, err := s.normalizeRecord(a.Name, disc, body.fields, declared)
		if err != nil {
			return nil, err
		}
		s.Records = append(s.Records, *rec)
	}

	for _, ix := range raw.Instructions {
		if ix.Name == "" {
			return nil, schemaErrorf("operation with empty name")
		}

		op := Operation{
			Name:          toSnakeCase(ix.Name),
			Discriminator: ix.Discriminator,
			Args:          []Field{},
			Roles:         []AccountRole{},
		}
		if len(op.Discriminator) == 0 {
			op.Discriminator = operationDiscriminator(ix.Name)
		}
		if len(op.Discriminator) != discriminatorLen {
			return nil, schemaErrorf("operation %q discriminator must be %d bytes, got %d", ix.Name, discriminatorLen, len(op.Discriminator))
		}

		for _, arg := range ix.Args {
			ref, err := s.resolveType(arg.Type, declared)
			if err != nil {
				return nil, err
			}
			op.Args = append(op.Args, Field{Name: toSnakeCase(arg.Name), Type: ref})
		}

		for _, acc := range ix.Accounts {
			op.Roles = append(op.Roles, AccountRole{
				Name:       toSnakeCase(acc.Name),
				IsSigner:   acc.IsSigner || acc.Signer,
				IsWritable: acc.IsMut || acc.Writable,
			})
		}

		s.Operations = append(s.Operations, op)
	}

	return s, nil
}

func (s *Schema) normalizeRecord(name string, discriminator []byte, fields []rawField, declared map[string]rawType) (*RecordType, error) {
	rec := &RecordType{
		Name:          name,
		Discriminator: discriminator,
		Fields:        []Field{},
	}
	for _, f := range fields {
		ref, err := s.resolveType(f.Type, declared)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, Field{Name: toSnakeCase(f.Name), Type: ref})
	}
	return rec, nil
}

// resolveType canonicalizes a raw type reference. A "defined" reference whose
// name is not declared but matches a primitive alias is demoted to that
// primitive; a bare name that is not a primitive alias but is declared is
// promoted to a defined reference.
func (s *Schema) resolveType(raw rawType, declared map[string]rawType) (TypeRef, error) {
	switch raw.kind {
	case rawKindName:
		if p, ok := primitiveAliases[raw.name]; ok {
			return TypeRef{Kind: TypePrimitive, Primitive: p}, nil
		}
		if _, ok := declared[raw.name]; ok {
			return TypeRef{Kind: TypeDefined, Defined: raw.name}, nil
		}
		return TypeRef{}, schemaErrorf("type %q matches neither a primitive nor a declared type", raw.name)
	case rawKindDefined:
		if _, ok := declared[raw.name]; ok {
			return TypeRef{Kind: TypeDefined, Defined: raw.name}, nil
		}
		if p, ok := primitiveAliases[raw.name]; ok {
			return TypeRef{Kind: TypePrimitive, Primitive: p}, nil
		}
		return TypeRef{}, schemaErrorf("defined type %q matches neither a primitive nor a declared type", raw.name)
	case rawKindOption:
		inner, err := s.resolveType(*raw.option, declared)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: TypeOption, Option: &inner}, nil
	}
	return TypeRef{}, schemaErrorf("unresolvable type reference")
}

func containsAccount(accounts []rawTypeDef, name string) bool {
	for _, a := range accounts {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Raw document model. Unmarshalling is deliberately permissive; Parse is
// where consistency is enforced.

type rawDocument struct {
	Name         string           `json:"name"`
	Instructions []rawInstruction `json:"instructions"`
	Accounts     []rawTypeDef     `json:"accounts"`
	Types        []rawTypeDef     `json:"types"`
}

type rawInstruction struct {
	Name          string        `json:"name"`
	Discriminator discriminator `json:"discriminator"`
	Accounts      []rawRole     `json:"accounts"`
	Args          []rawField    `json:"args"`
}

type rawRole struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	Writable bool   `json:"writable"`
	IsSigner bool   `json:"isSigner"`
	Signer   bool   `json:"signer"`

	// Embedded auto-derivation metadata. Parsed only to be discarded.
	PDA json.RawMessage `json:"pda"`
}

type rawTypeDef struct {
	Name          string        `json:"name"`
	Discriminator discriminator `json:"discriminator"`
	Type          rawType       `json:"type"`
}

type rawField struct {
	Name string  `json:"name"`
	Type rawType `json:"type"`
}

// discriminator tolerates the JSON array-of-numbers form.
type discriminator []byte

func (d *discriminator) UnmarshalJSON(b []byte) error {
	var nums []uint8
	if err := json.Unmarshal(b, &nums); err != nil {
		return err
	}
	*d = nums
	return nil
}

type rawTypeKind uint8

const (
	rawKindUnknown rawTypeKind = iota
	rawKindName
	rawKindDefined
	rawKindOption
	rawKindStruct
	rawKindEnum
)

// rawType is a type reference or type body in any of the observed shapes:
//
//	"u64"
//	{"defined": "AssetKind"}
//	{"defined": {"name": "AssetKind"}}
//	{"option": "publicKey"}
//	{"option": {"defined": "AssetKind"}}
//	{"kind": "struct", "fields": [...]}
//	{"kind": "enum", "variants": ["Sol", {"name": "Spl"}]}
type rawType struct {
	kind     rawTypeKind
	name     string
	option   *rawType
	fields   []rawField
	variants []string
}

func (t *rawType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		t.kind = rawKindName
		t.name = name
		return nil
	}

	var obj struct {
		Defined json.RawMessage `json:"defined"`
		Option  *rawType        `json:"option"`

		Kind     string            `json:"kind"`
		Fields   []rawField        `json:"fields"`
		Variants []json.RawMessage `json:"variants"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}

	switch {
	case len(obj.Defined) > 0:
		t.kind = rawKindDefined
		if err := json.Unmarshal(obj.Defined, &t.name); err == nil {
			return nil
		}
		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(obj.Defined, &named); err != nil {
			return err
		}
		t.name = named.Name
	case obj.Option != nil:
		t.kind = rawKindOption
		t.option = obj.Option
	case obj.Kind == "struct":
		t.kind = rawKindStruct
		t.fields = obj.Fields
	case obj.Kind == "enum":
		t.kind = rawKindEnum
		for _, v := range obj.Variants {
			variant, err := parseVariant(v)
			if err != nil {
				return err
			}
			t.variants = append(t.variants, variant)
		}
	}

	return nil
}

// parseVariant promotes a bare string variant to its structured form.
func parseVariant(b json.RawMessage) (string, error) {
	var bare string
	if err := json.Unmarshal(b, &bare); err == nil {
		return bare, nil
	}

	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &named); err != nil {
		return "", err
	}
	return named.Name, nil
}

// Package idl loads a loosely structured program interface description and
// produces a canonical, internally consistent schema that the instruction
// codec and account resolver can rely on.
package idl

import (
	"fmt"
)

// Primitive is a canonical primitive type name. Interface documents from
// different generator versions use inconsistent aliases (e.g. "pubkey" vs
// "publicKey"); normalization maps every alias to exactly one name.
type Primitive string

const (
	PrimitiveU8        Primitive = "u8"
	PrimitiveU16       Primitive = "u16"
	PrimitiveU32       Primitive = "u32"
	PrimitiveU64       Primitive = "u64"
	PrimitiveI64       Primitive = "i64"
	PrimitiveBool      Primitive = "bool"
	PrimitivePublicKey Primitive = "publicKey"
)

var primitiveAliases = map[string]Primitive{
	"u8":        PrimitiveU8,
	"u16":       PrimitiveU16,
	"u32":       PrimitiveU32,
	"u64":       PrimitiveU64,
	"i64":       PrimitiveI64,
	"bool":      PrimitiveBool,
	"publicKey": PrimitivePublicKey,
	"pubkey":    PrimitivePublicKey,
	"publickey": PrimitivePublicKey,
}

// Width returns the encoded byte width of the primitive.
func (p Primitive) Width() int {
	switch p {
	case PrimitiveU8, PrimitiveBool:
		return 1
	case PrimitiveU16:
		return 2
	case PrimitiveU32:
		return 4
	case PrimitiveU64, PrimitiveI64:
		return 8
	case PrimitivePublicKey:
		return 32
	}
	return 0
}

// Signed reports whether the primitive is a signed integer.
func (p Primitive) Signed() bool {
	return p == PrimitiveI64
}

type TypeKind uint8

const (
	TypePrimitive TypeKind = iota
	TypeDefined
	TypeOption
)

// TypeRef is a resolved reference to a primitive, a declared type, or an
// option wrapper around either.
type TypeRef struct {
	Kind      TypeKind
	Primitive Primitive
	Defined   string
	Option    *TypeRef
}

// Field is a named, typed slot in an operation's argument list or a record's
// field list. Order is significant; it is the binary contract.
type Field struct {
	Name string
	Type TypeRef
}

// AccountRole is a named account slot an operation requires. Roles are
// order-significant: the encoded instruction's account list must match the
// declared order exactly.
type AccountRole struct {
	Name       string
	IsSigner   bool
	IsWritable bool
}

// Operation is a program instruction: an 8-byte discriminator, an ordered
// argument list, and an ordered account role list.
type Operation struct {
	Name          string
	Discriminator []byte
	Args          []Field
	Roles         []AccountRole
}

// RecordType is a named on-chain state record layout.
type RecordType struct {
	Name          string
	Discriminator []byte
	Fields        []Field
}

// EnumType is a unit-variant enum, encoded as a single tag byte.
type EnumType struct {
	Name     string
	Variants []string
}

// Schema is the canonical description of the program surface.
type Schema struct {
	Name       string
	Operations []Operation
	Records    []RecordType
	Enums      []EnumType
}

// SchemaError indicates a malformed interface description. It is fatal: the
// engine refuses to start on a document it cannot normalize.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "schema: " + e.Reason
}

func schemaErrorf(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// Operation returns the declared operation with the given canonical name.
func (s *Schema) Operation(name string) (*Operation, bool) {
	for i := range s.Operations {
		if s.Operations[i].Name == name {
			return &s.Operations[i], true
		}
	}
	return nil, false
}

// Record returns the declared record type with the given name.
func (s *Schema) Record(name string) (*RecordType, bool) {
	for i := range s.Records {
		if s.Records[i].Name == name {
			return &s.Records[i], true
		}
	}
	return nil, false
}

// Enum returns the declared enum type with the given name.
func (s *Schema) Enum(name string) (*EnumType, bool) {
	for i := range s.Enums {
		if s.Enums[i].Name == name {
			return &s.Enums[i], true
		}
	}
	return nil, false
}

// Width returns the encoded byte width of the type reference within the
// schema. Options occupy a presence byte plus the full width of the wrapped
// type, matching fixed-size account layouts.
func (s *Schema) Width(t TypeRef) (int, error) {
	switch t.Kind {
	case TypePrimitive:
		if w := t.Primitive.Width(); w > 0 {
			return w, nil
		}
		return 0, schemaErrorf("unknown primitive %q", t.Primitive)
	case TypeOption:
		w, err := s.Width(*t.Option)
		if err != nil {
			return 0, err
		}
		return 1 + w, nil
	case TypeDefined:
		if _, ok := s.Enum(t.Defined); ok {
			return 1, nil
		}
		if rec, ok := s.Record(t.Defined); ok {
			var total int
			for _, f := range rec.Fields {
				w, err := s.Width(f.Type)
				if err != nil {
					return 0, err
				}
				total += w
			}
			return total, nil
		}
		return 0, schemaErrorf("unknown defined type %q", t.Defined)
	}
	return 0, schemaErrorf("unknown type kind %d", t.Kind)
}

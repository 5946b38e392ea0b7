// Package codec translates between schema-typed values and the fixed-width
// little-endian wire form used by on-chain program instructions and state
// records.
package codec

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/timelock-wallet/timelock-client/pkg/idl"
	"github.com/timelock-wallet/timelock-client/pkg/solana/binary"
)

// EncodingError indicates the provided arguments do not satisfy the declared
// operation: a missing or unknown argument, a type mismatch, or an integer
// outside the declared width.
type EncodingError struct {
	Operation string
	Reason    string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Operation, e.Reason)
}

func encodingErrorf(op, format string, args ...interface{}) *EncodingError {
	return &EncodingError{Operation: op, Reason: fmt.Sprintf(format, args...)}
}

// DecodingError indicates raw account data does not match the declared record
// layout: a truncated buffer, a discriminator mismatch, or an out of range
// enum tag.
type DecodingError struct {
	Record string
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Record, e.Reason)
}

func decodingErrorf(rec, format string, args ...interface{}) *DecodingError {
	return &DecodingError{Record: rec, Reason: fmt.Sprintf(format, args...)}
}

// EncodeInstruction produces the instruction data payload for the named
// operation: the operation discriminator followed by every declared argument
// in order. Every declared argument must be provided, and no undeclared
// argument may be.
func EncodeInstruction(s *idl.Schema, opName string, args map[string]Value) ([]byte, error) {
	op, ok := s.Operation(opName)
	if !ok {
		return nil, encodingErrorf(opName, "operation not declared")
	}

	for name := range args {
		if !hasArg(op, name) {
			return nil, encodingErrorf(opName, "argument %q not declared", name)
		}
	}

	size := len(op.Discriminator)
	for _, arg := range op.Args {
		w, err := s.Width(arg.Type)
		if err != nil {
			return nil, err
		}
		size += w
	}

	data := make([]byte, size)

	var offset int
	binary.PutDiscriminator(data, op.Discriminator, &offset)

	for _, arg := range op.Args {
		v, ok := args[arg.Name]
		if !ok {
			return nil, encodingErrorf(opName, "argument %q missing", arg.Name)
		}
		if err := encodeValue(s, opName, data, &offset, arg.Name, arg.Type, v); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func hasArg(op *idl.Operation, name string) bool {
	for _, arg := range op.Args {
		if arg.Name == name {
			return true
		}
	}
	return false
}

func encodeValue(s *idl.Schema, op string, dst []byte, offset *int, name string, t idl.TypeRef, v Value) error {
	switch t.Kind {
	case idl.TypePrimitive:
		return encodePrimitive(op, dst, offset, name, t.Primitive, v)
	case idl.TypeOption:
		inner, present, ok := v.Option()
		if !ok {
			return encodingErrorf(op, "argument %q: expected option value", name)
		}
		w, err := s.Width(*t.Option)
		if err != nil {
			return err
		}
		if !present {
			// The empty slot is still written, matching fixed-size layouts.
			*offset += 1 + w
			return nil
		}
		binary.PutUint8(dst, 1, offset)
		return encodeValue(s, op, dst, offset, name, *t.Option, inner)
	case idl.TypeDefined:
		if enum, ok := s.Enum(t.Defined); ok {
			variant, ok := v.Variant()
			if !ok {
				return encodingErrorf(op, "argument %q: expected %s variant", name, t.Defined)
			}
			tag := variantTag(enum, variant)
			if tag < 0 {
				return encodingErrorf(op, "argument %q: %s has no variant %q", name, t.Defined, variant)
			}
			binary.PutUint8(dst, uint8(tag), offset)
			return nil
		}
		return encodingErrorf(op, "argument %q: cannot encode defined type %q", name, t.Defined)
	}
	return encodingErrorf(op, "argument %q: unknown type kind", name)
}

func encodePrimitive(op string, dst []byte, offset *int, name string, p idl.Primitive, v Value) error {
	if p == idl.PrimitiveBool {
		b, ok := v.Bool()
		if !ok {
			return encodingErrorf(op, "argument %q: expected bool", name)
		}
		binary.PutBool(dst, b, offset)
		return nil
	}
	if p == idl.PrimitivePublicKey {
		key, ok := v.Key()
		if !ok {
			return encodingErrorf(op, "argument %q: expected public key", name)
		}
		if len(key) != ed25519.PublicKeySize {
			return encodingErrorf(op, "argument %q: invalid public key length %d", name, len(key))
		}
		binary.PutKey32(dst, key, offset)
		return nil
	}

	num, ok := v.BigInt()
	if !ok {
		return encodingErrorf(op, "argument %q: expected %s", name, p)
	}

	bits := uint(p.Width()) * 8
	if p.Signed() {
		if !fitsSigned(num, bits) {
			return encodingErrorf(op, "argument %q: %s out of range for %s", name, num, p)
		}
	} else {
		if num.Sign() < 0 || num.BitLen() > int(bits) {
			return encodingErrorf(op, "argument %q: %s out of range for %s", name, num, p)
		}
	}

	switch p {
	case idl.PrimitiveU8:
		binary.PutUint8(dst, uint8(num.Uint64()), offset)
	case idl.PrimitiveU16:
		binary.PutUint16(dst, uint16(num.Uint64()), offset)
	case idl.PrimitiveU32:
		binary.PutUint32(dst, uint32(num.Uint64()), offset)
	case idl.PrimitiveU64:
		binary.PutUint64(dst, num.Uint64(), offset)
	case idl.PrimitiveI64:
		binary.PutInt64(dst, num.Int64(), offset)
	default:
		return encodingErrorf(op, "argument %q: unknown primitive %q", name, p)
	}
	return nil
}

// fitsSigned reports whether v is within [-2^(bits-1), 2^(bits-1)-1].
func fitsSigned(v *big.Int, bits uint) bool {
	limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
	if v.Sign() < 0 {
		return v.CmpAbs(limit) <= 0
	}
	return v.Cmp(limit) < 0
}

func variantTag(enum *idl.EnumType, name string) int {
	for i, v := range enum.Variants {
		if v == name {
			return i
		}
	}
	return -1
}

// DecodedField is a single decoded record field.
type DecodedField struct {
	Name  string
	Value Value
}

// Decoded is the result of decoding raw account data against a record layout.
type Decoded struct {
	Record string
	Fields []DecodedField
}

// Field returns the decoded value for the named field.
func (d *Decoded) Field(name string) (Value, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Decode interprets raw account data as the named record. The record
// discriminator, when declared, must match the leading bytes. Trailing bytes
// beyond the declared layout are ignored; accounts are often allocated with
// padding.
func Decode(s *idl.Schema, recordName string, data []byte) (*Decoded, error) {
	rec, ok := s.Record(recordName)
	if !ok {
		return nil, decodingErrorf(recordName, "record not declared")
	}

	var offset int
	if len(rec.Discriminator) > 0 {
		if len(data) < len(rec.Discriminator) {
			return nil, decodingErrorf(recordName, "data too short for discriminator: %d bytes", len(data))
		}
		var disc []byte
		binary.GetDiscriminator(data, &disc, &offset)
		if !bytes.Equal(disc, rec.Discriminator) {
			return nil, decodingErrorf(recordName, "discriminator mismatch: %x", disc)
		}
	}

	decoded := &Decoded{Record: recordName}
	for _, f := range rec.Fields {
		v, err := decodeValue(s, recordName, data, &offset, f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		decoded.Fields = append(decoded.Fields, DecodedField{Name: f.Name, Value: v})
	}

	return decoded, nil
}

func decodeValue(s *idl.Schema, rec string, src []byte, offset *int, name string, t idl.TypeRef) (Value, error) {
	w, err := s.Width(t)
	if err != nil {
		return Value{}, err
	}
	if len(src) < *offset+w {
		return Value{}, decodingErrorf(rec, "field %q: truncated at offset %d", name, *offset)
	}

	switch t.Kind {
	case idl.TypePrimitive:
		return decodePrimitive(src, offset, t.Primitive), nil
	case idl.TypeOption:
		var tag uint8
		binary.GetUint8(src, &tag, offset)
		if tag > 1 {
			return Value{}, decodingErrorf(rec, "field %q: invalid option tag %d", name, tag)
		}
		if tag == 0 {
			// The wrapped slot is consumed regardless; layouts are fixed size.
			*offset += w - 1
			return None(), nil
		}
		inner, err := decodeValue(s, rec, src, offset, name, *t.Option)
		if err != nil {
			return Value{}, err
		}
		return Some(inner), nil
	case idl.TypeDefined:
		if enum, ok := s.Enum(t.Defined); ok {
			var tag uint8
			binary.GetUint8(src, &tag, offset)
			if int(tag) >= len(enum.Variants) {
				return Value{}, decodingErrorf(rec, "field %q: invalid %s tag %d", name, t.Defined, tag)
			}
			return Variant(enum.Variants[tag]), nil
		}
		return Value{}, decodingErrorf(rec, "field %q: cannot decode defined type %q", name, t.Defined)
	}
	return Value{}, decodingErrorf(rec, "field %q: unknown type kind", name)
}

func decodePrimitive(src []byte, offset *int, p idl.Primitive) Value {
	switch p {
	case idl.PrimitiveBool:
		var b bool
		binary.GetBool(src, &b, offset)
		return Bool(b)
	case idl.PrimitivePublicKey:
		var key ed25519.PublicKey
		binary.GetKey32(src, &key, offset)
		return Key(key)
	case idl.PrimitiveU8:
		var v uint8
		binary.GetUint8(src, &v, offset)
		return Uint8(v)
	case idl.PrimitiveU16:
		var v uint16
		binary.GetUint16(src, &v, offset)
		return U64(uint64(v))
	case idl.PrimitiveU32:
		var v uint32
		binary.GetUint32(src, &v, offset)
		return U64(uint64(v))
	case idl.PrimitiveU64:
		var v uint64
		binary.GetUint64(src, &v, offset)
		return U64(v)
	case idl.PrimitiveI64:
		var v int64
		binary.GetInt64(src, &v, offset)
		return I64(v)
	}
	return Value{}
}

package codec

import (
	"crypto/ed25519"
	"math/big"
)

type valueKind uint8

const (
	valueInt valueKind = iota
	valueBool
	valueKey
	valueVariant
	valueNone
	valueSome
)

// Value is a dynamically typed argument or field value. Integers are carried
// as arbitrary precision values so width and sign validation happens at
// encode time against the declared type, not at construction time.
type Value struct {
	kind    valueKind
	num     *big.Int
	boolean bool
	key     ed25519.PublicKey
	variant string
	inner   *Value
}

// U64 constructs an unsigned integer value.
func U64(v uint64) Value {
	return Value{kind: valueInt, num: new(big.Int).SetUint64(v)}
}

// I64 constructs a signed integer value.
func I64(v int64) Value {
	return Value{kind: valueInt, num: big.NewInt(v)}
}

// Uint8 constructs a small unsigned integer value.
func Uint8(v uint8) Value {
	return Value{kind: valueInt, num: big.NewInt(int64(v))}
}

// FromBigInt constructs an integer value from an arbitrary precision integer.
// The input is copied.
func FromBigInt(v *big.Int) Value {
	return Value{kind: valueInt, num: new(big.Int).Set(v)}
}

// Bool constructs a boolean value.
func Bool(v bool) Value {
	return Value{kind: valueBool, boolean: v}
}

// Key constructs a public key value.
func Key(pub ed25519.PublicKey) Value {
	return Value{kind: valueKey, key: pub}
}

// Variant constructs an enum value by variant name.
func Variant(name string) Value {
	return Value{kind: valueVariant, variant: name}
}

// Some wraps a value as a present option.
func Some(v Value) Value {
	return Value{kind: valueSome, inner: &v}
}

// None constructs an absent option value.
func None() Value {
	return Value{kind: valueNone}
}

// BigInt returns the integer payload, or false if the value is not an
// integer. The returned value is shared and must not be mutated.
func (v Value) BigInt() (*big.Int, bool) {
	if v.kind != valueInt {
		return nil, false
	}
	return v.num, true
}

// Uint64 returns the integer payload if it fits in a uint64.
func (v Value) Uint64() (uint64, bool) {
	if v.kind != valueInt || !v.num.IsUint64() {
		return 0, false
	}
	return v.num.Uint64(), true
}

// Int64 returns the integer payload if it fits in an int64.
func (v Value) Int64() (int64, bool) {
	if v.kind != valueInt || !v.num.IsInt64() {
		return 0, false
	}
	return v.num.Int64(), true
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	if v.kind != valueBool {
		return false, false
	}
	return v.boolean, true
}

// Key returns the public key payload.
func (v Value) Key() (ed25519.PublicKey, bool) {
	if v.kind != valueKey {
		return nil, false
	}
	return v.key, true
}

// Variant returns the enum variant name.
func (v Value) Variant() (string, bool) {
	if v.kind != valueVariant {
		return "", false
	}
	return v.variant, true
}

// Option unwraps an option value. present reports whether the option held a
// value, ok reports whether the value was an option at all.
func (v Value) Option() (inner Value, present bool, ok bool) {
	switch v.kind {
	case valueSome:
		return *v.inner, true, true
	case valueNone:
		return Value{}, false, true
	}
	return Value{}, false, false
}

// IsNone reports whether the value is an absent option.
func (v Value) IsNone() bool {
	return v.kind == valueNone
}

package idl

import (
	"crypto/sha256"
	"strings"
	"unicode"
)

// Anchor derives instruction discriminators from the snake_case method name
// in the "global" namespace, and account discriminators from the type name in
// the "account" namespace. The leading 8 bytes of the hash identify the
// operation or record on the wire.

const discriminatorLen = 8

func operationDiscriminator(name string) []byte {
	return namespaceDiscriminator("global", toSnakeCase(name))
}

func recordDiscriminator(name string) []byte {
	return namespaceDiscriminator("account", name)
}

func namespaceDiscriminator(namespace, name string) []byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	return h[:discriminatorLen]
}

func toSnakeCase(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

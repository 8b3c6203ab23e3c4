package storage

import "bytes"

// IndexAddress identifies a logical sub-keyspace: Name is the index
// namespace (dot-separated segments allowed), Bytes is an optional family
// discriminator letting many sibling indexes share one Name.
type IndexAddress struct {
	Name  string
	Bytes []byte
}

// NewAddress builds an address with no family discriminator.
func NewAddress(name string) IndexAddress {
	return IndexAddress{Name: name}
}

// Family returns a copy of this address with the given family
// discriminator bytes appended.
func (a IndexAddress) Family(bytes []byte) IndexAddress {
	return IndexAddress{Name: a.Name, Bytes: append([]byte(nil), bytes...)}
}

// Equal reports whether two addresses name the same sub-keyspace.
func (a IndexAddress) Equal(other IndexAddress) bool {
	return a.Name == other.Name && bytes.Equal(a.Bytes, other.Bytes)
}

// prefixedKey forms the physical key for a user key under this address:
// Bytes (the family discriminator, if any) followed by the user key. The
// table the physical key lives under is the address's Name.
func (a IndexAddress) prefixedKey(key []byte) []byte {
	if len(a.Bytes) == 0 {
		return key
	}
	buf := make([]byte, 0, len(a.Bytes)+len(key))
	buf = append(buf, a.Bytes...)
	buf = append(buf, key...)
	return buf
}

package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDHookFunc overrides NewSixID when it returns override=true.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook lets tests force the ids handed out by NewSixID.
var NewSixIDHook SixIDHookFunc

// sixIDSubtype is the user-defined BSON binary subtype used for SixID values.
const sixIDSubtype byte = 0x80

// SixID is a 6-byte identifier stored as BSON binary subtype 0x80 and
// rendered as 10 Crockford Base32 characters everywhere else.
type SixID [6]byte

// NewSixID creates a new random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

// ParseSixID parses the Crockford Base32 form of a SixID.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")

	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}

	var bits uint64
	var offset uint
	var id SixID
	byteIndex := 0

	for i := 0; i < 10; i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, fmt.Errorf("invalid character %q in SixID", s[i])
		}

		bits |= uint64(val) << offset
		offset += 5

		for offset >= 8 && byteIndex < 6 {
			id[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}

	if byteIndex != 6 {
		return SixID{}, errors.New("invalid SixID: couldn't decode 6 bytes")
	}
	return id, nil
}

// MustParseSixID is ParseSixID for literals in tests and seed data.
func MustParseSixID(s string) SixID {
	id, err := ParseSixID(s)
	if err != nil {
		panic(err)
	}
	return id
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 40)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}

	lower := strings.ToLower(crockfordAlphabet)
	for i := 10; i < len(lower); i++ {
		crockfordDecodeMap[lower[i]] = byte(i)
	}

	// Commonly confused characters
	crockfordDecodeMap['O'] = 0
	crockfordDecodeMap['o'] = 0
	crockfordDecodeMap['I'] = 1
	crockfordDecodeMap['i'] = 1
	crockfordDecodeMap['L'] = 1
	crockfordDecodeMap['l'] = 1
}

// IsZero reports whether the id is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the Crockford Base32 representation.
func (u SixID) String() string {
	result := make([]byte, 0, 10)
	var bits, offset uint

	for i := 0; i < 6; i++ {
		bits |= uint(u[i]) << offset
		offset += 8

		for offset >= 5 {
			result = append(result, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}

	if offset > 0 {
		result = append(result, crockfordAlphabet[bits&0x1F])
	}

	return string(result)
}

// MarshalBSONValue stores the id as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, sixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue reads binary subtype 0x80. A BSON null decodes to the zero id,
// including into a *SixID field, which the driver allocates first.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*u = SixID{}
		return nil
	case bsontype.Binary:
		subtype, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok {
			return errors.New("invalid BSON binary data for SixID")
		}
		if subtype != sixIDSubtype || len(bin) != 6 {
			return fmt.Errorf("invalid BSON binary for SixID: subtype 0x%x, length %d", subtype, len(bin))
		}
		copy(u[:], bin)
		return nil
	default:
		return fmt.Errorf("invalid BSON type for SixID: %s", t)
	}
}

// MarshalJSON writes the Crockford Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts the Crockford Base32 string.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalText lets SixID be used as a map key or query binding.
func (u SixID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses the Crockford Base32 string.
func (u *SixID) UnmarshalText(data []byte) error {
	parsed, err := ParseSixID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

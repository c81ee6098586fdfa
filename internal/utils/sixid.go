package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a 6-byte random document ID, rendered as 10 characters of
// Crockford Base32 in URLs and JSON, and stored in MongoDB as BinData with
// custom subtype 0x80.
type SixID [6]byte

const sixIDSubtype = 0x80

// Crockford Base32 alphabet (uppercase, no I/L/O/U).
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecode [256]byte

func init() {
	for i := range crockfordDecode {
		crockfordDecode[i] = 0xFF
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		crockfordDecode[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			crockfordDecode[c+'a'-'A'] = byte(i)
		}
	}
	// Commonly confused characters decode leniently.
	crockfordDecode['o'], crockfordDecode['O'] = 0, 0
	crockfordDecode['i'], crockfordDecode['I'] = 1, 1
	crockfordDecode['l'], crockfordDecode['L'] = 1, 1
}

// NewSixID returns a new random SixID.
func NewSixID() SixID {
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("sixid: rand.Read failed: %v", err))
	}
	return id
}

// IsZero reports whether the ID is the all-zero value.
func (id SixID) IsZero() bool {
	return id == SixID{}
}

// String encodes the 48 bits as 10 Crockford Base32 characters.
func (id SixID) String() string {
	out := make([]byte, 0, 10)
	var bits, nbits uint
	for i := 0; i < len(id); i++ {
		bits |= uint(id[i]) << nbits
		nbits += 8
		for nbits >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			nbits -= 5
		}
	}
	if nbits > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID decodes a 10-character Crockford Base32 string. The empty
// string parses to the zero ID.
func ParseSixID(s string) (SixID, error) {
	var id SixID
	if s == "" {
		return id, nil
	}
	if len(s) != 10 {
		return id, errors.New("sixid: encoded length must be 10")
	}

	var bits uint64
	var nbits uint
	n := 0
	for i := 0; i < len(s); i++ {
		v := crockfordDecode[s[i]]
		if v == 0xFF {
			return SixID{}, fmt.Errorf("sixid: invalid character %q", s[i])
		}
		bits |= uint64(v) << nbits
		nbits += 5
		for nbits >= 8 && n < len(id) {
			id[n] = byte(bits & 0xFF)
			bits >>= 8
			nbits -= 8
			n++
		}
	}
	if n != len(id) {
		return SixID{}, errors.New("sixid: could not decode 6 bytes")
	}
	return id, nil
}

// MarshalJSON renders the ID as its Crockford Base32 string.
func (id SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses the ID from its Crockford Base32 string.
func (id *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBSONValue stores the ID as BinData with the custom 0x80 subtype.
func (id SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: sixIDSubtype, Data: id[:]})
}

// UnmarshalBSONValue reads the ID back from BinData.
func (id *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*id = SixID{}
		return nil
	}
	var bin primitive.Binary
	raw := bson.RawValue{Type: t, Value: data}
	if err := raw.Unmarshal(&bin); err != nil {
		return fmt.Errorf("sixid: unmarshal bson value: %w", err)
	}
	if bin.Subtype != sixIDSubtype || len(bin.Data) != len(id) {
		return errors.New("sixid: invalid bson binary subtype or length")
	}
	copy(id[:], bin.Data)
	return nil
}

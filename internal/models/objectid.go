package models

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// ObjectID is a 12 byte identifier: 4 bytes of creation time in seconds,
// 5 random process bytes and a 3 byte counter. Its canonical form is 24
// lowercase hex characters.
type ObjectID [12]byte

var NilObjectID ObjectID

var (
	processUnique   = newProcessUnique()
	objectIDCounter = newCounterSeed()
)

func newProcessUnique() [5]byte {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("models: cannot seed object id generator: " + err.Error())
	}
	return b
}

func newCounterSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("models: cannot seed object id counter: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

// NewObjectID generates an identifier stamped with the current time.
func NewObjectID() ObjectID {
	return NewObjectIDFromTimestamp(time.Now())
}

// NewObjectIDFromTimestamp generates an identifier whose leading bytes
// encode t.
func NewObjectIDFromTimestamp(t time.Time) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], processUnique[:])

	n := atomic.AddUint32(&objectIDCounter, 1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return id
}

// ObjectIDFromUUID derives a stable identifier from the first 12 bytes of a
// uuid. It is used for workspace pages that were not created through this
// package.
func ObjectIDFromUUID(u uuid.UUID) ObjectID {
	var id ObjectID
	copy(id[:], u[:12])
	return id
}

// ParseObjectID decodes the 24 character hex form. Anything else is an
// invalid identifier error.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 2*len(id) {
		return NilObjectID, utils.NewInvalidIdentifierError(s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilObjectID, utils.NewInvalidIdentifierError(s)
	}
	return id, nil
}

// ObjectIDFrom accepts an ObjectID, a pointer to one, raw bytes or the hex form.
func ObjectIDFrom(v any) (ObjectID, error) {
	switch id := v.(type) {
	case ObjectID:
		return id, nil
	case *ObjectID:
		if id == nil {
			return NilObjectID, utils.NewInvalidIdentifierError("<nil>")
		}
		return *id, nil
	case [12]byte:
		return ObjectID(id), nil
	case string:
		return ParseObjectID(id)
	default:
		return NilObjectID, utils.NewAppError(utils.CodeInvalidIdentifier, "unsupported identifier value", nil).
			WithDetail("value", v)
	}
}

// IsValidObjectID reports whether s parses as an ObjectID.
func IsValidObjectID(s string) bool {
	_, err := ParseObjectID(s)
	return err == nil
}

// Hex returns the lowercase hex form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) String() string {
	return id.Hex()
}

// IsZero reports whether id is the all-zero value.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

// Timestamp returns the creation time encoded in id, to the second.
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// MarshalText encodes id as hex, so it appears as a string in JSON and YAML.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

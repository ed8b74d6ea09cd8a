package interaction

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrTagMismatch is returned when a "type" field does not carry the
// discriminant its variant requires.
var ErrTagMismatch = errors.New("interaction: discriminant mismatch")

// discriminant ties a zero-size marker type to the wire constant it stands for.
type discriminant interface {
	value() uint8
}

// Tag is a "type" field that can only hold the constant of K. Unmarshalling
// any other value fails, so a decoded Tag[K] always means "the wire said K".
// Marshalling always writes K's constant.
type Tag[K discriminant] struct{}

// Value returns the constant K stands for.
func (Tag[K]) Value() uint8 {
	var k K
	return k.value()
}

// UnmarshalJSON accepts exactly the decimal literal of K's constant.
func (t *Tag[K]) UnmarshalJSON(data []byte) error {
	n, err := strconv.ParseUint(string(data), 10, 8)
	if err != nil {
		return fmt.Errorf("%w: want %d, got %s", ErrTagMismatch, t.Value(), truncate(data))
	}
	if uint8(n) != t.Value() {
		return fmt.Errorf("%w: want %d, got %d", ErrTagMismatch, t.Value(), n)
	}
	return nil
}

// MarshalJSON writes K's constant.
func (t Tag[K]) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(t.Value()), 10), nil
}

func truncate(b []byte) string {
	const max = 16
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Inbound interaction types.
type (
	pingKind               struct{}
	applicationCommandKind struct{}
)

func (pingKind) value() uint8               { return 1 }
func (applicationCommandKind) value() uint8 { return 2 }

// Outbound interaction callback types.
type (
	pongKind                     struct{}
	channelMessageWithSourceKind struct{}
)

func (pongKind) value() uint8                     { return 1 }
func (channelMessageWithSourceKind) value() uint8 { return 4 }

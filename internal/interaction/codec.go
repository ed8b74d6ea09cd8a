package interaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrUnrecognizedEnvelope is returned when a body matches no Interaction
// variant: unknown discriminant, missing fields or wrongly typed fields.
var ErrUnrecognizedEnvelope = errors.New("interaction: unrecognized envelope")

var errMissingField = errors.New("missing field")

// object is a JSON object with its member values left undecoded. Member
// names are matched exactly, unlike encoding/json struct fields, and may
// appear only once.
type object map[string]json.RawMessage

var errDuplicateMember = errors.New("duplicate member")

func parseObject(b []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not an object")
	}

	obj := object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, seen := obj[key]; seen {
			return nil, fmt.Errorf("%w: %s", errDuplicateMember, key)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		obj[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(raw, []byte("null"))
}

// readTag checks the "type" member against K. Every variant decoder calls it
// before looking at any other member.
func readTag[K discriminant](obj object) error {
	raw, ok := obj["type"]
	if !ok {
		return fmt.Errorf("%w: type", errMissingField)
	}
	var tag Tag[K]
	return json.Unmarshal(raw, &tag)
}

func (o object) objectField(key string) (object, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%w: %s", errMissingField, key)
	}
	obj, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	return obj, nil
}

func (o object) stringField(key string) (string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("%w: %s", errMissingField, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %s: %w", key, err)
	}
	return s, nil
}

type variantDecoder func(object) (Interaction, error)

// decoders are tried in order; the first success wins.
var decoders = []variantDecoder{
	decodePing,
	decodeApplicationCommand,
}

func decodePing(obj object) (Interaction, error) {
	if err := readTag[pingKind](obj); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return Ping{}, nil
}

func decodeApplicationCommand(obj object) (Interaction, error) {
	if err := readTag[applicationCommandKind](obj); err != nil {
		return nil, fmt.Errorf("application command: %w", err)
	}
	data, err := obj.objectField("data")
	if err != nil {
		return nil, fmt.Errorf("application command: %w", err)
	}
	name, err := data.stringField("name")
	if err != nil {
		return nil, fmt.Errorf("application command: data: %w", err)
	}
	return ApplicationCommand{Name: name}, nil
}

// Decode parses a raw request body into an Interaction. Members the
// variants do not use are ignored.
func Decode(body []byte) (Interaction, error) {
	obj, err := parseObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrecognizedEnvelope, err)
	}

	errs := make([]error, 0, len(decoders))
	for _, decode := range decoders {
		in, err := decode(obj)
		if err == nil {
			return in, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrUnrecognizedEnvelope, errors.Join(errs...))
}

type pongWire struct {
	Type Tag[pongKind] `json:"type"`
}

type messageData struct {
	Content string `json:"content"`
}

type channelMessageWithSourceWire struct {
	Type Tag[channelMessageWithSourceKind] `json:"type"`
	Data messageData                      `json:"data"`
}

// Encode serialises a Response in the exact shape the platform expects.
// Content is written verbatim, without HTML escaping.
func Encode(resp Response) []byte {
	var wire any
	switch r := resp.(type) {
	case Pong, *Pong:
		wire = pongWire{}
	case ChannelMessageWithSource:
		wire = channelMessageWithSourceWire{Data: messageData{Content: r.Content}}
	case *ChannelMessageWithSource:
		wire = channelMessageWithSourceWire{Data: messageData{Content: r.Content}}
	default:
		panic(fmt.Sprintf("interaction: unknown response variant %T", resp))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		panic(fmt.Sprintf("interaction: encode %T: %v", resp, err))
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

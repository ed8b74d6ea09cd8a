package interaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Interaction
	}{
		{name: "ping", body: `{"type":1}`, want: Ping{}},
		{name: "ping with extra members", body: `{"type":1,"id":"123","token":"abc","version":1}`, want: Ping{}},
		{name: "ping with unrelated data", body: `{"type":1,"data":{"name":"city"}}`, want: Ping{}},
		{
			name: "application command",
			body: `{"type":2,"data":{"name":"city"}}`,
			want: ApplicationCommand{Name: "city"},
		},
		{
			name: "application command with platform members",
			body: `{"id":"1","application_id":"2","type":2,"data":{"id":"3","name":"city","type":1},"token":"t"}`,
			want: ApplicationCommand{Name: "city"},
		},
		{
			name: "type member last",
			body: `{"data":{"name":"doesnotexist"},"type":2}`,
			want: ApplicationCommand{Name: "doesnotexist"},
		},
		{name: "whitespace", body: " {\n \"type\" : 1 \n} ", want: Ping{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unused discriminant", body: `{"type":3}`},
		{name: "future discriminant", body: `{"type":5,"data":{"name":"city"}}`},
		{name: "zero discriminant", body: `{"type":0}`},
		{name: "discriminant out of byte range", body: `{"type":257}`},
		{name: "negative discriminant", body: `{"type":-1}`},
		{name: "string discriminant", body: `{"type":"1"}`},
		{name: "float discriminant", body: `{"type":1.0}`},
		{name: "null discriminant", body: `{"type":null}`},
		{name: "missing discriminant", body: `{"data":{"name":"city"}}`},
		{name: "upper case member name", body: `{"TYPE":1}`},
		{name: "command without data", body: `{"type":2}`},
		{name: "command with null data", body: `{"type":2,"data":null}`},
		{name: "command data not an object", body: `{"type":2,"data":"city"}`},
		{name: "command without name", body: `{"type":2,"data":{}}`},
		{name: "command with null name", body: `{"type":2,"data":{"name":null}}`},
		{name: "command with numeric name", body: `{"type":2,"data":{"name":7}}`},
		{name: "empty body", body: ``},
		{name: "json null", body: `null`},
		{name: "json array", body: `[{"type":1}]`},
		{name: "truncated", body: `{"type":1`},
		{name: "not json", body: `hello`},
		{name: "trailing data", body: `{"type":1} {"type":2}`},
		{name: "duplicate discriminant ping first", body: `{"type":1,"type":2,"data":{"name":"city"}}`},
		{name: "duplicate discriminant command first", body: `{"type":2,"type":1}`},
		{name: "duplicate equal discriminant", body: `{"type":1,"type":1}`},
		{name: "duplicate data", body: `{"type":2,"data":{"name":"city"},"data":{"name":"word"}}`},
		{name: "duplicate command name", body: `{"type":2,"data":{"name":"city","name":"word"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrUnrecognizedEnvelope)
			assert.Nil(t, got)
		})
	}
}

func TestDecodeChecksTagBeforeFields(t *testing.T) {
	// A valid command payload under the ping tag still decodes as a ping,
	// and valid fields never rescue a wrong tag.
	got, err := Decode([]byte(`{"type":1,"data":{"name":7}}`))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, got)

	_, err = Decode([]byte(`{"type":4,"data":{"name":"city"}}`))
	assert.ErrorIs(t, err, ErrUnrecognizedEnvelope)
	assert.ErrorIs(t, err, ErrTagMismatch)
}

func TestTag(t *testing.T) {
	var ping Tag[pingKind]
	assert.Equal(t, uint8(1), ping.Value())
	require.NoError(t, json.Unmarshal([]byte(`1`), &ping))
	assert.ErrorIs(t, json.Unmarshal([]byte(`2`), &ping), ErrTagMismatch)

	var cmd Tag[applicationCommandKind]
	assert.Equal(t, uint8(2), cmd.Value())
	assert.ErrorIs(t, json.Unmarshal([]byte(`1`), &cmd), ErrTagMismatch)

	b, err := json.Marshal(Tag[channelMessageWithSourceKind]{})
	require.NoError(t, err)
	assert.Equal(t, `4`, string(b))
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{name: "pong", resp: Pong{}, want: `{"type":1}`},
		{name: "pong pointer", resp: &Pong{}, want: `{"type":1}`},
		{
			name: "channel message",
			resp: ChannelMessageWithSource{Content: "Lisbon"},
			want: `{"type":4,"data":{"content":"Lisbon"}}`,
		},
		{
			name: "channel message pointer",
			resp: &ChannelMessageWithSource{Content: "Oslo"},
			want: `{"type":4,"data":{"content":"Oslo"}}`,
		},
		{
			name: "content is verbatim",
			resp: ChannelMessageWithSource{Content: `<São Paulo & "Rio">`},
			want: `{"type":4,"data":{"content":"<São Paulo & \"Rio\">"}}`,
		},
		{
			name: "content cannot smuggle a discriminant",
			resp: ChannelMessageWithSource{Content: `","type":1,"x":"`},
			want: `{"type":4,"data":{"content":"\",\"type\":1,\"x\":\""}}`,
		},
		{name: "empty content", resp: ChannelMessageWithSource{}, want: `{"type":4,"data":{"content":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.resp)))
		})
	}
}

func TestEncodePanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { Encode(nil) })
}

func TestKinds(t *testing.T) {
	assert.Equal(t, "ping", Ping{}.Kind())
	assert.Equal(t, "application_command", ApplicationCommand{}.Kind())
	assert.Equal(t, "pong", Pong{}.Kind())
	assert.Equal(t, "channel_message_with_source", ChannelMessageWithSource{}.Kind())
}

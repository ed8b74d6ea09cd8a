package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wordbot/internal/interaction"
)

func cityRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	words, err := BuiltinWords("city")
	require.NoError(t, err)
	reg, err := NewRegistry([]Command{{Name: "city", Description: "generate a random city", Words: words}}, opts...)
	require.NoError(t, err)
	return reg
}

func TestDispatchPing(t *testing.T) {
	reg := cityRegistry(t)
	resp, err := reg.Dispatch(interaction.Ping{})
	require.NoError(t, err)
	assert.Equal(t, interaction.Pong{}, resp)
	assert.Equal(t, `{"type":1}`, string(interaction.Encode(resp)))
}

func TestDispatchCityDrawsFromWordList(t *testing.T) {
	reg := cityRegistry(t)
	words, err := BuiltinWords("city")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for range 200 {
		resp, err := reg.Dispatch(interaction.ApplicationCommand{Name: "city"})
		require.NoError(t, err)

		msg, ok := resp.(interaction.ChannelMessageWithSource)
		require.True(t, ok, "got %T", resp)
		assert.Contains(t, words, msg.Content)
		seen[msg.Content] = true
	}
	assert.Greater(t, len(seen), 1, "200 draws from %d entries should not all match", len(words))
}

func TestDispatchUsesPicker(t *testing.T) {
	var gotN int
	reg, err := NewRegistry(
		[]Command{{Name: "color", Words: []string{"red", "green", "blue"}}},
		WithPicker(func(n int) int { gotN = n; return 2 }),
	)
	require.NoError(t, err)

	resp, err := reg.Dispatch(interaction.ApplicationCommand{Name: "color"})
	require.NoError(t, err)
	assert.Equal(t, interaction.ChannelMessageWithSource{Content: "blue"}, resp)
	assert.Equal(t, 3, gotN)
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := cityRegistry(t)

	for _, name := range []string{"doesnotexist", "City", "city ", ""} {
		resp, err := reg.Dispatch(interaction.ApplicationCommand{Name: name})
		assert.Nil(t, resp)
		require.ErrorIs(t, err, ErrUnknownCommand)

		var unknown *UnknownCommandError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, name, unknown.Name)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		cmds []Command
		want string
	}{
		{name: "empty name", cmds: []Command{{Name: "", Words: []string{"a"}}}, want: "invalid name"},
		{name: "upper case", cmds: []Command{{Name: "City", Words: []string{"a"}}}, want: "invalid name"},
		{name: "space", cmds: []Command{{Name: "two words", Words: []string{"a"}}}, want: "invalid name"},
		{name: "too long", cmds: []Command{{Name: strings.Repeat("a", 33), Words: []string{"a"}}}, want: "invalid name"},
		{
			name: "duplicate",
			cmds: []Command{{Name: "a", Words: []string{"x"}}, {Name: "a", Words: []string{"y"}}},
			want: "duplicate",
		},
		{name: "no words", cmds: []Command{{Name: "a"}}, want: "word list is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.cmds)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistryCopiesWords(t *testing.T) {
	words := []string{"one"}
	reg, err := NewRegistry([]Command{{Name: "n", Words: words}})
	require.NoError(t, err)

	words[0] = "mutated"
	c, ok := reg.Lookup("n")
	require.True(t, ok)
	assert.Equal(t, []string{"one"}, c.Words)

	listed := reg.Commands()
	listed[0].Words[0] = "mutated"
	c, _ = reg.Lookup("n")
	assert.Equal(t, []string{"one"}, c.Words)
	assert.Equal(t, 1, reg.Len())
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("city"))
	assert.True(t, ValidName("word-of_the-day2"))
	assert.True(t, ValidName("città"))
	assert.True(t, ValidName("都市"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(strings.Repeat("a", 33)))
	assert.False(t, ValidName("City"))
	assert.False(t, ValidName("a/b"))
}

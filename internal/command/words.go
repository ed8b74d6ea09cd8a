package command

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

//go:embed words/*.txt
var builtinWords embed.FS

// ErrEmptyWordList is returned when a word source yields no entries.
var ErrEmptyWordList = errors.New("command: word list is empty")

// ReadWords reads one entry per line. Surrounding whitespace is trimmed and
// blank lines and lines starting with '#' are skipped.
func ReadWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyWordList
	}
	return words, nil
}

// LoadWordsFile reads a word list from disk.
func LoadWordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	words, err := ReadWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// BuiltinWords returns the word list shipped in the binary for name.
func BuiltinWords(name string) ([]string, error) {
	f, err := builtinWords.Open("words/" + name + ".txt")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no built-in word list for command %q", name)
		}
		return nil, err
	}
	defer f.Close()
	return ReadWords(f)
}

// HasBuiltinWords reports whether a word list for name ships in the binary.
func HasBuiltinWords(name string) bool {
	_, err := fs.Stat(builtinWords, "words/"+name+".txt")
	return err == nil
}

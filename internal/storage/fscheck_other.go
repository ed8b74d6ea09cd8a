//go:build !linux

package storage

import "errors"

func networkFilesystem(string) (string, bool, error) {
	return "", false, errors.New("filesystem detection is unsupported on this platform")
}

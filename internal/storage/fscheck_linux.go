//go:build linux

package storage

import "syscall"

var linuxNetworkMagic = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
}

func networkFilesystem(path string) (string, bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", false, err
	}
	name, ok := linuxNetworkMagic[int64(stat.Type)]
	return name, ok, nil
}

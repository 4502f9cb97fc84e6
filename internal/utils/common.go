package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/twpayne/go-vfs/v4"
	"golang.org/x/sys/unix"
)

// ReadEnv reads a shell style KEY=value file such as /etc/default/grub.
func ReadEnv(fs vfs.FS, file string) (map[string]string, error) {
	content, err := fs.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return godotenv.Unmarshal(string(content))
}

// CreateIfNotExists creates the directory and any missing parent.
func CreateIfNotExists(fs vfs.FS, path string) error {
	if _, err := fs.Stat(path); os.IsNotExist(err) {
		return vfs.MkdirAll(fs, path, 0o755)
	}

	return nil
}

// Exists reports whether path is present on fs.
func Exists(fs vfs.FS, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// CleanupSlice removes empty and whitespace-only values.
func CleanupSlice(slice []string) []string {
	var cleanSlice []string
	for _, item := range slice {
		if strings.Trim(item, " ") == "" {
			continue
		}
		cleanSlice = append(cleanSlice, item)
	}
	return cleanSlice
}

// UniqueSlice removes duplicates keeping the first occurrence.
func UniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	var list []string
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// KernelRelease returns the running kernel version, as uname -r does.
func KernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// IsRoot reports whether we run with root privileges.
func IsRoot() bool {
	return os.Geteuid() == 0
}

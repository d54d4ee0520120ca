// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"fmt"
	"os"
	"strings"
)

// Option changes where the env file is searched or how its variables are
// applied.
type Option func(*options) error

func (v Option) apply(opts *options) error {
	return v(opts)
}

// SearchCurrentDir looks for the env file in the working directory instead of
// the home directory. When parents is true, ancestors of the working
// directory are searched too and the nearest file wins.
func SearchCurrentDir(parents bool) Option {
	return func(opts *options) error {
		opts.searchCurrentDirectory = true
		opts.scanParentDirectories = parents
		return nil
	}
}

// VariableNamePrefix prepends the prefix to every variable name in the file.
func VariableNamePrefix(prefix string) Option {
	return func(opts *options) error {
		valid := len(prefix) > 0 && !strings.ContainsAny(prefix[:1], "0123456789_")
		for _, r := range prefix {
			if r != '_' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
				valid = false
			}
		}
		if !valid {
			return fmt.Errorf("variable name prefix %q is invalid: %w", prefix, os.ErrInvalid)
		}
		opts.variableNamePrefix = prefix
		return nil
	}
}

// OverwriteIfExists replaces the variables that already have a non-empty
// value in the process environment. They are kept by default.
func OverwriteIfExists(overwrite bool) Option {
	return func(opts *options) error {
		opts.overwriteIfExists = overwrite
		return nil
	}
}

// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

type options struct {
	variableNamePrefix string

	searchCurrentDirectory bool

	scanParentDirectories bool

	overwriteIfExists bool
}

// UpdateEnv updates current process's environment with the values read from
// the env filename found in the user's home directory. The location of the env
// file search path and other behaviors can be changed by the input options.
//
// Lines starting with # are comments and an optional "export " prefix is
// allowed before the variable name. Values can be wrapped in single or double
// quotes. NO shell escaping or expansion is performed on the values.
func UpdateEnv(filename string, opts ...Option) error {
	if strings.ContainsRune(filename, os.PathSeparator) {
		return fmt.Errorf("file name contains path separator: %w", os.ErrInvalid)
	}
	var fopts options
	for _, v := range opts {
		if err := v.apply(&fopts); err != nil {
			return err
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	var fpaths []string
	if fopts.searchCurrentDirectory {
		fpaths = []string{filepath.Join(cwd, filename)}
	}
	if fopts.scanParentDirectories {
		last, dir := "", filepath.Dir(cwd)
		for dir != last {
			fpaths = append(fpaths, filepath.Join(dir, filename))
			last, dir = dir, filepath.Dir(dir)
		}
	}
	if len(fpaths) == 0 {
		user, err := user.Current()
		if err != nil {
			return err
		}
		if len(user.HomeDir) == 0 {
			return fmt.Errorf("could not determine current user's home directory")
		}
		fpaths = []string{filepath.Join(user.HomeDir, filename)}
	}
	for _, fpath := range fpaths {
		fp, err := os.Open(fpath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			continue
		}
		defer fp.Close()

		vars, err := Parse(fp)
		if err != nil {
			return fmt.Errorf("%s: %w", fpath, err)
		}
		for _, kv := range vars {
			key := fopts.variableNamePrefix + kv[0]
			if len(os.Getenv(key)) != 0 {
				if !fopts.overwriteIfExists {
					continue
				}
			}
			os.Setenv(key, kv[1])
		}
		break
	}
	return nil
}

// Parse reads variable assignments from an env file. Returns name and value
// pairs in the file order.
func Parse(r io.Reader) ([][2]string, error) {
	var vars [][2]string
	scanner := bufio.NewScanner(r)
	for i := 1; scanner.Scan(); i++ {
		line := string(bytes.TrimSpace(scanner.Bytes()))
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		p := strings.IndexRune(line, '=')
		if p == -1 {
			return nil, fmt.Errorf("invalid/unrecognized variable assignment on line %d: %w", i, os.ErrInvalid)
		}
		key, value := strings.TrimSpace(line[:p]), strings.TrimSpace(line[p+1:])
		if !prefixRe.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable name %q on line %d: %w", key, i, os.ErrInvalid)
		}
		v, err := unquote(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q on line %d: %w", key, i, err)
		}
		vars = append(vars, [2]string{key, v})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func unquote(value string) (string, error) {
	if len(value) == 0 {
		return value, nil
	}
	if q := value[0]; q == '"' || q == '\'' {
		end := strings.IndexByte(value[1:], q)
		if end == -1 {
			return "", fmt.Errorf("unterminated quote: %w", os.ErrInvalid)
		}
		return value[1 : 1+end], nil
	}
	// Unquoted values end at an inline comment.
	if p := strings.Index(value, " #"); p != -1 {
		value = strings.TrimSpace(value[:p])
	}
	return value, nil
}

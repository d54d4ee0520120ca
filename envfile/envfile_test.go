// Copyright (c) 2025 BVK Chaitanya

package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `
# wallet settings
PRIVATE_KEY=abc123
export RPC_ENDPOINT="https://api.mainnet-beta.solana.com"
SLIPPAGE='50'
TOKEN_MINT=So11111111111111111111111111111111111111112 # wrapped sol
EMPTY=
`
	vars, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]string{
		{"PRIVATE_KEY", "abc123"},
		{"RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"},
		{"SLIPPAGE", "50"},
		{"TOKEN_MINT", "So11111111111111111111111111111111111111112"},
		{"EMPTY", ""},
	}
	if len(vars) != len(want) {
		t.Fatalf("want %d variables, got %d", len(want), len(vars))
	}
	for i := range want {
		if vars[i] != want[i] {
			t.Fatalf("want %v, got %v", want[i], vars[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"NOVALUE", "1BAD=x", `QUOTE="open`} {
		if _, err := Parse(strings.NewReader(input)); !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("%q: want invalid error, got %v", input, err)
		}
	}
}

func TestUpdateEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test.env"), []byte("FIRST=one\nSECOND=two\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	t.Setenv("ENVTEST_FIRST", "")
	t.Setenv("ENVTEST_SECOND", "keep")
	if err := UpdateEnv("test.env", SearchCurrentDir(false), VariableNamePrefix("ENVTEST_")); err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv("ENVTEST_FIRST"); v != "one" {
		t.Fatalf("want one, got %q", v)
	}
	if v := os.Getenv("ENVTEST_SECOND"); v != "keep" {
		t.Fatalf("existing value must not be overwritten, got %q", v)
	}

	if err := UpdateEnv("test.env", SearchCurrentDir(false), VariableNamePrefix("ENVTEST_"), OverwriteIfExists(true)); err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv("ENVTEST_SECOND"); v != "two" {
		t.Fatalf("want two, got %q", v)
	}
}

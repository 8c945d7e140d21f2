package cipher

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestIdentifyHash(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"5f4dcc3b5aa765d61d8327deb882cf99", []string{"MD5", "Base64-like"}},
		{"d033e22ae348aeb5660fc2140aec35850c4da997", []string{"SHA1", "Base64-like"}},
		{strings.Repeat("a", 56), []string{"SHA224", "Base64-like"}},
		{strings.Repeat("b", 64), []string{"SHA256", "Base64-like"}},
		{strings.Repeat("c", 96), []string{"SHA384", "Base64-like"}},
		{strings.Repeat("d", 128), []string{"SHA512", "Base64-like"}},
		{"  SGVsbG8=  ", []string{"Base64-like"}},
		{"not a hash!", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := IdentifyHash(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("IdentifyHash(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCrackHash(t *testing.T) {
	words, _ := Wordlist("ctf")
	ctx := context.Background()

	tests := []struct {
		name       string
		digest     string
		algorithms []string
		wantWord   string
		wantAlgo   string
	}{
		{"md5 among same-length digests", "5f4dcc3b5aa765d61d8327deb882cf99", nil, "password", "md5"},
		{"md5 only", "5f4dcc3b5aa765d61d8327deb882cf99", []string{"md5"}, "password", "md5"},
		{"ntlm", "8846F7EAEE8FB117AD06BDD830B7586C", []string{"ntlm"}, "password", "ntlm"},
		{"sha1", "d033e22ae348aeb5660fc2140aec35850c4da997", nil, "admin", "sha1"},
		{"sha256", "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b", []string{"SHA256"}, "secret", "sha256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CrackHash(ctx, tt.digest, words, tt.algorithms)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Found || got.Word != tt.wantWord || got.Algorithm != tt.wantAlgo {
				t.Errorf("unexpected result %+v", got)
			}
		})
	}
}

func TestCrackHashMiss(t *testing.T) {
	got, err := CrackHash(context.Background(), "00000000000000000000000000000000", []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("a miss should not be an error: %v", err)
	}
	if got.Found {
		t.Errorf("unexpected hit %+v", got)
	}
	// md4, ntlm and md5 produce 16-byte digests.
	if got.Tried != 6 {
		t.Errorf("expected 6 attempts, got %d", got.Tried)
	}
}

func TestCrackHashErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := CrackHash(ctx, "zz", []string{"a"}, nil); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if _, err := CrackHash(ctx, "00", []string{"a"}, []string{"whirlpool"}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := CrackHash(cancelled, "00", []string{"a"}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHashOperations(t *testing.T) {
	tests := []struct {
		op   string
		in   string
		want string
	}{
		{"md4_hash", "", "31d6cfe0d16ae931b73c59d7e0c089c0"},
		{"ntlm_hash", "password", "8846f7eaee8fb117ad06bdd830b7586c"},
		{"md5_hash", "password", "5f4dcc3b5aa765d61d8327deb882cf99"},
		{"sha1_hash", "admin", "d033e22ae348aeb5660fc2140aec35850c4da997"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			op, ok := GetOperation(tt.op)
			if !ok {
				t.Fatalf("missing %s", tt.op)
			}
			got, err := op.Execute(context.Background(), []byte(tt.in), nil)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if _, ok := op.Reverse(); ok {
				t.Error("hash operations must not be reversible")
			}
		})
	}
}

func TestWordlist(t *testing.T) {
	common, ok := Wordlist("common")
	if !ok || len(common) != 22 || common[0] != "the" {
		t.Errorf("unexpected common wordlist %v", common)
	}
	common[0] = "mutated"
	again, _ := Wordlist("common")
	if again[0] != "the" {
		t.Error("Wordlist must return a copy")
	}
	if _, ok := Wordlist("rockyou"); ok {
		t.Error("unexpected wordlist")
	}
	if got := WordlistNames(); !reflect.DeepEqual(got, []string{"common", "ctf"}) {
		t.Errorf("unexpected names %v", got)
	}
}

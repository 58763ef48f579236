package runner

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace only", input: "   ", want: nil},
		{name: "simple", input: "a b c", want: []string{"a", "b", "c"}},
		{name: "repeated separators", input: "a   b\tc", want: []string{"a", "b", "c"}},
		{name: "quoted group", input: `a "b c" d`, want: []string{"a", "b c", "d"}},
		{name: "escaped quote", input: `a "b\"c"`, want: []string{"a", `b"c`}},
		{name: "backslash kept for other escapes", input: `"x\ny"`, want: []string{`x\ny`}},
		{name: "double backslash kept", input: `"a\\b"`, want: []string{`a\\b`}},
		{name: "backslash outside quotes is literal", input: `a\b`, want: []string{`a\b`}},
		{name: "quotes join adjacent text", input: `--label "traefik.frontend.rule=Host: x"`, want: []string{"--label", "traefik.frontend.rule=Host: x"}},
		{name: "empty quotes produce nothing", input: `a "" b`, want: []string{"a", "b"}},
		{name: "trailing token trimmed", input: "compute droplet list ", want: []string{"compute", "droplet", "list"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize(%q) error = %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	for _, input := range []string{`a "b`, `"`, `a "b\"`} {
		_, err := Tokenize(input)
		if !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("Tokenize(%q) error = %v, want ErrUnterminatedQuote", input, err)
		}
	}
}

func TestTokenizeRejoinIsStable(t *testing.T) {
	inputs := []string{
		"compute droplet create web --wait -o json",
		"volume ls -q --filter label=volumeRole=database",
		"x",
	}
	for _, input := range inputs {
		first, err := Tokenize(input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error = %v", input, err)
		}
		second, err := Tokenize(strings.Join(first, " "))
		if err != nil {
			t.Fatalf("re-tokenize error = %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("re-tokenized %#v, want %#v", second, first)
		}
	}
}

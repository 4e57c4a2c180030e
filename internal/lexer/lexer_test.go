package lexer

import (
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeSimple(t *testing.T) {
	got, err := Tokenize("echo hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"echo", "hello", "world"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeEmptyLine(t *testing.T) {
	got, err := Tokenize("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero tokens, got %v", got)
	}
}

func TestSingleQuoteIsLiteral(t *testing.T) {
	got, err := Tokenize(`echo 'a\tb'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"echo", `a\tb`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDoubleQuoteEscapes(t *testing.T) {
	got, err := Tokenize(`echo "a\tb"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"echo", "a\tb"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestQuoteSpanDoesNotBoundary(t *testing.T) {
	got, err := Tokenize(`a"b c"d`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"ab cd"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestVariableExpansion(t *testing.T) {
	os.Setenv("GOSH_TEST_VAR", "V")
	defer os.Unsetenv("GOSH_TEST_VAR")

	cases := []struct {
		in   string
		want string
	}{
		{"$GOSH_TEST_VAR", "V"},
		{"${GOSH_TEST_VAR}", "V"},
		{`"x${GOSH_TEST_VAR}y"`, "xVy"},
	}
	for _, c := range cases {
		got, err := Tokenize(c.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", c.in, err)
		}
		if len(got) != 1 || got[0] != c.want {
			t.Fatalf("Tokenize(%q) = %v, want [%q]", c.in, got, c.want)
		}
	}
}

func TestVariableExpansionUnset(t *testing.T) {
	os.Unsetenv("GOSH_TEST_UNSET_VAR")

	got, err := Tokenize("$GOSH_TEST_UNSET_VAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero tokens for unset var reference, got %v", got)
	}

	got, err = Tokenize(`"x${GOSH_TEST_UNSET_VAR}y"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "xy" {
		t.Fatalf("got %v, want [xy]", got)
	}
}

func TestUnterminatedSingleQuote(t *testing.T) {
	_, err := Tokenize("echo 'abc")
	if err != ErrUnterminatedSingleQuote {
		t.Fatalf("got %v, want ErrUnterminatedSingleQuote", err)
	}
}

func TestUnterminatedDoubleQuote(t *testing.T) {
	_, err := Tokenize(`echo "abc`)
	if err != ErrUnterminatedDoubleQuote {
		t.Fatalf("got %v, want ErrUnterminatedDoubleQuote", err)
	}
}

func TestOperatorsRequireWhitespace(t *testing.T) {
	got, err := Tokenize("a>b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a>b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLexRoundTrip(t *testing.T) {
	in := "   ls   -a    /tmp  "
	got, err := Tokenize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Fields(in)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTooManyTokens(t *testing.T) {
	line := strings.Repeat("a ", MaxTokens+1)
	_, err := Tokenize(line)
	if err == nil {
		t.Fatalf("expected error for too many tokens")
	}
}

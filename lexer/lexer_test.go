package lexer

import (
	"reflect"
	"strings"
	"testing"

	"solang/diag"
	"solang/token"
)

func scan(t *testing.T, source string) ([]token.Token, *diag.Diagnostics) {
	t.Helper()
	diagnostics := diag.New()
	tokens := New(0, source, diagnostics).Scan()
	return tokens, diagnostics
}

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestOperators(t *testing.T) {
	tokens, diagnostics := scan(t, "== != <= >= << >> && || ** ++ -- += -= => ? :")
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	expected := []token.Kind{
		token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS_EQUAL, token.LARGER_EQUAL,
		token.SHIFT_LEFT, token.SHIFT_RIGHT, token.AND_AND, token.OR_OR,
		token.POWER, token.INCREMENT, token.DECREMENT, token.ADD_ASSIGN,
		token.SUB_ASSIGN, token.ARROW, token.QUESTION, token.COLON, token.EOF,
	}
	if !reflect.DeepEqual(kinds(tokens), expected) {
		t.Errorf("Scan() = %v, want %v", kinds(tokens), expected)
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tokens, _ := scan(t, "contract Foo is Bar { uint128 x; }")
	expected := []token.Kind{
		token.CONTRACT, token.IDENTIFIER, token.IS, token.IDENTIFIER,
		token.LCUR, token.UINT, token.IDENTIFIER, token.SEMICOLON,
		token.RCUR, token.EOF,
	}
	if !reflect.DeepEqual(kinds(tokens), expected) {
		t.Errorf("Scan() = %v, want %v", kinds(tokens), expected)
	}
	if tokens[5].Value != 128 {
		t.Errorf("uint128 width = %v, want 128", tokens[5].Value)
	}
}

func TestNumberLiterals(t *testing.T) {
	t.Run("UnderscoreSeparators", func(t *testing.T) {
		tokens, diagnostics := scan(t, "1_000_000")
		if diagnostics.HasErrors() {
			t.Fatalf("unexpected errors: %v", diagnostics.All())
		}
		if tokens[0].Value != "1000000" {
			t.Errorf("digits = %q, want 1000000", tokens[0].Value)
		}
	})
	t.Run("HexWithSeparators", func(t *testing.T) {
		tokens, diagnostics := scan(t, "0xdead_cafe")
		if diagnostics.HasErrors() {
			t.Fatalf("unexpected errors: %v", diagnostics.All())
		}
		if tokens[0].Kind != token.HEX_NUMBER || tokens[0].Value != "deadcafe" {
			t.Errorf("got %v %q", tokens[0].Kind, tokens[0].Value)
		}
	})
	t.Run("TrailingUnderscore", func(t *testing.T) {
		_, diagnostics := scan(t, "100_")
		if !diagnostics.HasErrors() {
			t.Error("trailing underscore should be rejected")
		}
	})
	t.Run("UnderscoreAfterPrefix", func(t *testing.T) {
		_, diagnostics := scan(t, "0x_ff")
		if !diagnostics.HasErrors() {
			t.Error("underscore adjacent to 0x should be rejected")
		}
	})
}

func TestStringLiterals(t *testing.T) {
	tokens, diagnostics := scan(t, `"hello\nworld"`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	if tokens[0].Value != "hello\nworld" {
		t.Errorf("value = %q", tokens[0].Value)
	}

	_, diagnostics = scan(t, `"unterminated`)
	if !diagnostics.HasErrors() {
		t.Error("unterminated string should be rejected")
	}
}

func TestHexStringLiteral(t *testing.T) {
	tokens, diagnostics := scan(t, `hex"dead_cafe"`)
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	if tokens[0].Kind != token.HEX_STRING {
		t.Fatalf("kind = %v", tokens[0].Kind)
	}
	if !reflect.DeepEqual(tokens[0].Value, []byte{0xde, 0xad, 0xca, 0xfe}) {
		t.Errorf("value = %x", tokens[0].Value)
	}

	_, diagnostics = scan(t, `hex"abc"`)
	if !diagnostics.HasErrors() {
		t.Error("odd digit count should be rejected")
	}
}

func TestAddressLiteral(t *testing.T) {
	// the EIP-55 test vector from the proposal
	checksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	t.Run("CorrectCase", func(t *testing.T) {
		tokens, diagnostics := scan(t, checksummed)
		if diagnostics.HasErrors() {
			t.Fatalf("unexpected errors: %v", diagnostics.All())
		}
		if tokens[0].Kind != token.ADDRESS_LITERAL {
			t.Fatalf("kind = %v", tokens[0].Kind)
		}
		raw, _ := tokens[0].Value.([]byte)
		if len(raw) != 20 {
			t.Errorf("address length = %d", len(raw))
		}
	})

	t.Run("LowercasedSuggestsChecksum", func(t *testing.T) {
		_, diagnostics := scan(t, strings.ToLower(checksummed))
		if !diagnostics.HasErrors() {
			t.Fatal("mis-cased address should be rejected")
		}
		message := diagnostics.All()[0].Message
		if !strings.Contains(message, checksummed) {
			t.Errorf("diagnostic %q does not carry the corrected spelling %q", message, checksummed)
		}
	})
}

func TestComments(t *testing.T) {
	tokens, diagnostics := scan(t, "a // line\n/* block */ b\n/// doc text\nc")
	if diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagnostics.All())
	}
	expected := []token.Kind{token.IDENTIFIER, token.IDENTIFIER, token.DOC_COMMENT, token.IDENTIFIER, token.EOF}
	if !reflect.DeepEqual(kinds(tokens), expected) {
		t.Fatalf("Scan() = %v, want %v", kinds(tokens), expected)
	}
	if tokens[2].Value != "doc text" {
		t.Errorf("doc text = %q", tokens[2].Value)
	}
}

func TestSpans(t *testing.T) {
	tokens, _ := scan(t, "ab cd")
	first := tokens[0].Span
	second := tokens[1].Span
	if first.Start != 0 || first.End != 2 {
		t.Errorf("first span = %+v", first)
	}
	if second.Start != 3 || second.End != 5 {
		t.Errorf("second span = %+v", second)
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	_, diagnostics := scan(t, "a @ b")
	if !diagnostics.HasErrors() {
		t.Error("unexpected character should be rejected")
	}
}

package token

import (
	"testing"
)

func TestCreate(t *testing.T) {
	tok := Create(LPA, Span{File: 0, Start: 3, End: 4})
	if tok.Kind != LPA || tok.Lexeme != "(" {
		t.Errorf("Create(LPA) = %v", tok)
	}
}

func TestCreateLiteral(t *testing.T) {
	tok := CreateLiteral(NUMBER, "123", "1_2_3", Span{Start: 0, End: 5})
	if tok.Value != "123" || tok.Lexeme != "1_2_3" {
		t.Errorf("CreateLiteral = %v", tok)
	}
}

func TestSpanMerge(t *testing.T) {
	merged := Span{File: 1, Start: 4, End: 8}.Merge(Span{File: 1, Start: 2, End: 6})
	if merged.Start != 2 || merged.End != 8 || merged.File != 1 {
		t.Errorf("Merge = %+v", merged)
	}
}

func TestKeywordTable(t *testing.T) {
	if KeyWords["contract"] != CONTRACT || KeyWords["mapping"] != MAPPING {
		t.Error("keyword table lost an entry")
	}
	if _, reserved := KeyWords["uint128"]; reserved {
		t.Error("sized types are recognized by the lexer, not the keyword table")
	}
}

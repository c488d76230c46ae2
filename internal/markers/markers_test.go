package markers

import "testing"

func TestParse_Basic(t *testing.T) {
	s := Parse("A, B ,C")
	if len(s) != 3 {
		t.Fatalf("len = %d, want 3", len(s))
	}
	for _, tok := range []string{"A", "B", "C"} {
		if !s.Contains(tok) {
			t.Errorf("missing token %q", tok)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	s := Parse("")
	if s == nil {
		t.Fatal("expected non-nil set")
	}
	if len(s) != 0 {
		t.Errorf("len = %d, want 0", len(s))
	}
}

func TestParse_EmptyTokensDropped(t *testing.T) {
	s := Parse(",A,, ,B,")
	if len(s) != 2 {
		t.Errorf("len = %d, want 2: %v", len(s), s)
	}
}

func TestParse_CaseSensitive(t *testing.T) {
	s := Parse("DONE, done")
	if len(s) != 2 {
		t.Fatalf("len = %d, want 2", len(s))
	}
	if !s.Contains("DONE") || !s.Contains("done") {
		t.Error("case-sensitive tokens should both be present")
	}
}

func TestParse_Idempotent(t *testing.T) {
	const input = "DONE, NOW, LATER, DOING, TODO, WAITING, CANCELLED"
	a := Parse(input)
	b := Parse(input)
	if !a.Equal(b) {
		t.Errorf("parsing twice differs: %v vs %v", a, b)
	}
	if len(a) != 7 {
		t.Errorf("len = %d, want 7", len(a))
	}
}

func TestSet_Equal(t *testing.T) {
	if !Parse("A,B").Equal(Parse("B, A")) {
		t.Error("order should not matter")
	}
	if Parse("A,B").Equal(Parse("A")) {
		t.Error("different sizes should not be equal")
	}
	if Parse("A,B").Equal(Parse("A,C")) {
		t.Error("different tokens should not be equal")
	}
}

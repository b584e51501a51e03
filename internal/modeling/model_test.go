package modeling

import "testing"

func TestExprPlusAndScale(t *testing.T) {
	v := NewVar(0, "x")
	e := Coeff(2, v).Plus(C(3)).Scale(2)

	if e.Const != 6 {
		t.Fatalf("expected const 6, got %v", e.Const)
	}
	if len(e.Terms) != 1 || e.Terms[0].Coeff != 4 {
		t.Fatalf("expected single term with coeff 4, got %+v", e.Terms)
	}
}

func TestConstraintConstructors(t *testing.T) {
	v := NewVar(1, "y")
	le := LessOrEqual(Coeff(1, v), C(5))
	if le.Relation != LE {
		t.Fatalf("expected LE, got %v", le.Relation)
	}
	ge := GreaterOrEqual(Coeff(1, v), C(5))
	if ge.Relation != GE {
		t.Fatalf("expected GE, got %v", ge.Relation)
	}
	eq := Eq(Coeff(1, v), C(5))
	if eq.Relation != EQ {
		t.Fatalf("expected EQ, got %v", eq.Relation)
	}
}

package chainevent

import "testing"

func TestOriginIsOrigin(t *testing.T) {
	if !Origin().IsOrigin() {
		t.Fatal("Origin() must report IsOrigin true")
	}
	if NewPoint(0, nil).IsOrigin() {
		t.Fatal("a zero-slot specific point must not be Origin")
	}
}

func TestPointEqual(t *testing.T) {
	a := NewPoint(10, []byte{1, 2, 3})
	b := NewPoint(10, []byte{1, 2, 3})
	c := NewPoint(10, []byte{1, 2, 4})
	d := NewPoint(11, []byte{1, 2, 3})

	if !a.Equal(b) {
		t.Fatal("identical points must compare equal")
	}
	if a.Equal(c) {
		t.Fatal("points with different hashes must not compare equal")
	}
	if a.Equal(d) {
		t.Fatal("points with different slots must not compare equal")
	}
	if !Origin().Equal(Origin()) {
		t.Fatal("two Origin points must compare equal")
	}
	if Origin().Equal(a) || a.Equal(Origin()) {
		t.Fatal("Origin must never equal a specific point")
	}
}

func TestPointString(t *testing.T) {
	if Origin().String() != "Origin" {
		t.Fatalf("Origin().String() = %q, want Origin", Origin().String())
	}
	p := NewPoint(5, []byte{0xab})
	if got, want := p.String(), "(5, ab)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

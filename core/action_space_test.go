package core

import (
	"errors"
	"testing"
)

func TestActionSpaceAppendIssuesSequentialIndices(t *testing.T) {
	s := NewActionSpace()

	for i := 0; i < 3; i++ {
		idx, err := s.Append(MakeAction(KindID(0), int64(i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if idx != i {
			t.Fatalf("index = %d, want %d", idx, i)
		}
	}
	if s.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", s.Size())
	}
}

func TestActionSpaceRejectsDuplicates(t *testing.T) {
	s := NewActionSpace()
	a := MakeAction(KindID(2), 7, 9)

	if _, err := s.Append(a); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err := s.Append(a)
	if !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("second append err = %v, want ErrDuplicateAction", err)
	}
}

func TestActionSpaceRoundTrip(t *testing.T) {
	s := NewActionSpace()
	a := MakeAction(KindID(1), 42, 43)
	idx, err := s.Append(a)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, ok := s.At(idx)
	if !ok || got != a {
		t.Fatalf("At(%d) = %v, %v; want %v, true", idx, got, ok, a)
	}
	back, ok := s.IndexOf(a)
	if !ok || back != idx {
		t.Fatalf("IndexOf = %d, %v; want %d, true", back, ok, idx)
	}
}

func TestActionSpaceBoundaryLookups(t *testing.T) {
	s := NewActionSpace()
	if _, ok := s.At(0); ok {
		t.Fatalf("At(0) on empty space should report ok=false")
	}
	if _, err := s.Append(MakeAction(KindID(0), 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, ok := s.At(-1); ok {
		t.Fatalf("At(-1) should report ok=false")
	}
	if _, ok := s.At(1); ok {
		t.Fatalf("At(size) should report ok=false")
	}
	if _, ok := s.IndexOf(MakeAction(KindID(0), 2)); ok {
		t.Fatalf("IndexOf of unknown action should report ok=false")
	}
}

func TestActionSlotsDistinguishActions(t *testing.T) {
	// Same kind, same leading value, different arity: these must be
	// distinct keys in the bijection.
	a := MakeAction(KindID(3), 5)
	b := MakeAction(KindID(3), 5, 0)
	if a == b {
		t.Fatalf("actions with different arity compare equal")
	}
}

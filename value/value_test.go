package value

import (
	"errors"
	"fmt"
	"testing"
)

func TestVariantAccessors(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"long", Long(42), KindLong},
		{"double", Double(3.5), KindDouble},
		{"string", String("S1"), KindString},
		{"error", Err(ErrTimeout), KindError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.v.Kind() != c.kind {
				t.Fatalf("Kind() = %v, want %v", c.v.Kind(), c.kind)
			}
		})
	}
}

func TestWrongVariantReturnsFalse(t *testing.T) {
	v := Long(1)
	if _, ok := v.Double(); ok {
		t.Fatal("Double() ok on a Long value")
	}
	if _, ok := v.Text(); ok {
		t.Fatal("Text() ok on a Long value")
	}
	if _, ok := v.ErrorKind(); ok {
		t.Fatal("ErrorKind() ok on a Long value")
	}
}

func TestErrorKindIsError(t *testing.T) {
	v := Err(ErrInvalidAddress)
	k, ok := v.ErrorKind()
	if !ok {
		t.Fatal("ErrorKind() not ok on an Error value")
	}
	var err error = k
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatal("ErrorKind does not compare equal through errors.Is")
	}
}

func TestKindOfRecoversWrappedKind(t *testing.T) {
	err := fmt.Errorf("uvr613: channel_number out of range: %w", ErrConfig)
	if k := KindOf(err); k != ErrConfig {
		t.Fatalf("KindOf() = %v, want ErrConfig", k)
	}
}

func TestKindOfDefaultsToGeneric(t *testing.T) {
	if k := KindOf(errors.New("unrelated failure")); k != ErrGeneric {
		t.Fatalf("KindOf() = %v, want ErrGeneric", k)
	}
}

func TestKindOfNilIsOk(t *testing.T) {
	if k := KindOf(nil); k != Ok {
		t.Fatalf("KindOf(nil) = %v, want Ok", k)
	}
}

package foundation

import "testing"

func TestOption(t *testing.T) {
	t.Run("Some", func(t *testing.T) {
		o := Some("release")
		if !o.IsSome() || o.IsNone() {
			t.Fatal("expected Some")
		}
		v, ok := o.Get()
		if !ok || v != "release" {
			t.Fatalf("Get() = %q, %v", v, ok)
		}
		if o.String() != "Some(release)" {
			t.Errorf("String() = %q", o.String())
		}
	})

	t.Run("None", func(t *testing.T) {
		o := None[int]()
		if o.IsSome() {
			t.Fatal("expected None")
		}
		if v, ok := o.Get(); ok || v != 0 {
			t.Errorf("Get() = %d, %v", v, ok)
		}
		if o.String() != "None" {
			t.Errorf("String() = %q", o.String())
		}
	})

	t.Run("Unwrap panics on None", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		None[string]().Unwrap()
	})
}

func TestNormalizer(t *testing.T) {
	type state string
	n := NewNormalizer(map[string]state{
		"Pending":    "wait",
		"InProgress": "wait",
		"Success":    "ok",
	}, "bad")

	cases := map[string]state{
		"pending":      "wait",
		" INPROGRESS ": "wait",
		"Success":      "ok",
		"Cancelled":    "bad",
		"":             "bad",
	}
	for raw, want := range cases {
		if got := n.Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, ok := n.Lookup("TimedOut"); ok {
		t.Error("Lookup should not recognize TimedOut")
	}
	if v, ok := n.Lookup("success"); !ok || v != "ok" {
		t.Errorf("Lookup(success) = %q, %v", v, ok)
	}
}

package key

import "testing"

func TestNewKeyRoundTrip(t *testing.T) {
	cases := []struct {
		tag   byte
		index uint64
	}{
		{'x', 0},
		{'x', 1},
		{'l', 42},
		{'x', 0x00FFFFFFFFFFFFFF},
	}
	for _, c := range cases {
		k := NewKey(c.tag, c.index)
		if got := k.Tag(); got != c.tag {
			t.Errorf("NewKey(%c, %d).Tag() = %c, want %c", c.tag, c.index, got, c.tag)
		}
		if got := k.Index(); got != c.index {
			t.Errorf("NewKey(%c, %d).Index() = %d, want %d", c.tag, c.index, got, c.index)
		}
	}
}

func TestKeyDistinguishesTagFromSameIndex(t *testing.T) {
	x1 := NewKey('x', 1)
	l1 := NewKey('l', 1)
	if x1 == l1 {
		t.Fatalf("NewKey('x',1) and NewKey('l',1) collided: %v", x1)
	}
}

func TestKeyString(t *testing.T) {
	k := NewKey('x', 7)
	if got, want := k.String(), "x7"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

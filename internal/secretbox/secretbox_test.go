package secretbox

import (
	"errors"
	"strings"
	"testing"
)

func newTestBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	box, err := NewFromBase64(key)
	if err != nil {
		t.Fatal(err)
	}
	return box
}

func TestSealOpenRoundTrip(t *testing.T) {
	box := newTestBox(t)
	for _, plaintext := range []string{"", "x", "sk-abc123def456", strings.Repeat("long ", 100)} {
		sealed, err := box.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plaintext, err)
		}
		if sealed == plaintext && plaintext != "" {
			t.Fatalf("Seal(%q) returned plaintext", plaintext)
		}
		got, err := box.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	box := newTestBox(t)
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if a == b {
		t.Error("two seals of the same value should differ")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	box := newTestBox(t)
	sealed, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		sealed string
	}{
		{"flipped byte", flipLastChar(sealed)},
		{"truncated", sealed[:8]},
		{"not base64", "!!!"},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := box.Open(tc.sealed); !errors.Is(err, ErrInvalidCiphertext) {
				t.Errorf("Open = %v, want ErrInvalidCiphertext", err)
			}
		})
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := newTestBox(t).Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newTestBox(t).Open(sealed); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open with wrong key = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewFromBase64("not base64 at all!"); err == nil {
		t.Error("malformed base64 key accepted")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", "****"},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "1234****6789"},
		{"sk-abc123def456xyz", "sk-a****6xyz"},
	}
	for _, tc := range tests {
		if got := Mask(tc.value); got != tc.want {
			t.Errorf("Mask(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func flipLastChar(s string) string {
	b := []byte(s)
	i := len(b) - 1
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

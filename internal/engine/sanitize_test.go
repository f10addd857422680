package engine

import "testing"

func TestSanitizeMasksDigits(t *testing.T) {
	got := Sanitize("balance: 5000")
	want := "balance: ****"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"saldo: R$ 5.000,00 senha: trustno1 cpf: 12345678901",
		"no sensitive content here",
		"SENHA=hunter2, more text",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestSanitizeSenhaCaseInsensitive(t *testing.T) {
	got := Sanitize("SENHA=hunter2 end")
	want := "senha=******** end"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

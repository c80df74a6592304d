package domain

import (
	"errors"
	"testing"
)

func TestFingerprintDistance(t *testing.T) {
	a := Fingerprint{Hash: 0b1010}
	b := Fingerprint{Hash: 0b0110}
	if d := a.Distance(b); d != 2 {
		t.Fatalf("ожидали расстояние 2, получили %d", d)
	}
	if d := a.Distance(a); d != 0 {
		t.Fatalf("расстояние до себя должно быть 0, получили %d", d)
	}
	full := Fingerprint{Hash: ^uint64(0)}
	if d := full.Distance(Fingerprint{}); d != 64 {
		t.Fatalf("ожидали расстояние 64, получили %d", d)
	}
}

func TestFingerprintString(t *testing.T) {
	fp := Fingerprint{Hash: 0xDEADBEEF}
	if fp.String() != "00000000deadbeef" {
		t.Fatalf("неожиданное представление: %s", fp)
	}
}

func TestVerdictHelpers(t *testing.T) {
	if v := Pass(); !v.Admit || v.Reason != "" {
		t.Fatalf("Pass должен пропускать без причины: %+v", v)
	}
	v := Reject(RejectPolicy, "banned_term:казино")
	if v.Admit {
		t.Fatalf("Reject не должен пропускать")
	}
	if v.Kind != RejectPolicy || v.Reason != "banned_term:казино" {
		t.Fatalf("Reject потерял причину: %+v", v)
	}
}

func TestAssemblyErrorUnwrap(t *testing.T) {
	cause := errors.New("таймаут")
	err := NewAssemblyError("merge", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("ошибка этапа должна разворачиваться до причины")
	}
	var asmErr *AssemblyError
	if !errors.As(error(err), &asmErr) || asmErr.Stage != "merge" {
		t.Fatalf("ожидали этап merge, получили %+v", asmErr)
	}
}

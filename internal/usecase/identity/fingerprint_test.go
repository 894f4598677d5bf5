package identity

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	sig := Signal{PhotoUID: "AQAD123", Caption: "подпись"}
	first := Fingerprint(sig)
	second := Fingerprint(sig)
	if first != second {
		t.Fatalf("ожидали одинаковый отпечаток, получили %s и %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("ожидали hex sha256, получили %q", first)
	}
}

func TestFingerprintPrefersMediaOverText(t *testing.T) {
	withMedia := Fingerprint(Signal{VideoUID: "uid", Text: "текст"})
	textOnly := Fingerprint(Signal{Text: "текст"})
	if withMedia == textOnly {
		t.Fatal("ожидали разные отпечатки для сообщения с медиа и без")
	}
}

func TestFingerprintFallsBackToMessageID(t *testing.T) {
	a := Fingerprint(Signal{MessageID: 7})
	b := Fingerprint(Signal{MessageID: 7})
	c := Fingerprint(Signal{MessageID: 8})
	if a != b {
		t.Fatal("ожидали детерминированный фоллбэк по message id")
	}
	if a == c {
		t.Fatal("ожидали разные отпечатки для разных message id")
	}
}

func TestFingerprintSameTextSameDigest(t *testing.T) {
	if Fingerprint(Signal{Text: "привет", MessageID: 1}) != Fingerprint(Signal{Text: "привет", MessageID: 2}) {
		t.Fatal("отпечаток текста не должен зависеть от message id")
	}
}

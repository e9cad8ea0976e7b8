package idempotency_test

import (
	"testing"

	"github.com/coreledger/engine/internal/domain/idempotency"
)

func TestFingerprintStableUnderKeyOrderAndWhitespace(t *testing.T) {
	a := []byte(`{"amount":100,"currency":"USD"}`)
	b := []byte(`{ "currency": "USD", "amount": 100 }`)

	fa, err := idempotency.Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}
	fb, err := idempotency.Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}
	if fa != fb {
		t.Fatalf("expected identical fingerprints, got %s vs %s", fa, fb)
	}
}

func TestFingerprintDiffersForDifferentBody(t *testing.T) {
	a := []byte(`{"amount":100}`)
	b := []byte(`{"amount":200}`)

	fa, _ := idempotency.Fingerprint(a)
	fb, _ := idempotency.Fingerprint(b)
	if fa == fb {
		t.Fatalf("expected different fingerprints for different bodies")
	}
}

func TestFingerprintNestedObjectOrdering(t *testing.T) {
	a := []byte(`{"outer":{"b":1,"a":2},"z":3}`)
	b := []byte(`{"z":3,"outer":{"a":2,"b":1}}`)

	fa, _ := idempotency.Fingerprint(a)
	fb, _ := idempotency.Fingerprint(b)
	if fa != fb {
		t.Fatalf("expected identical fingerprints for reordered nested objects")
	}
}

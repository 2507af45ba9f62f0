package model

import (
	"errors"
	"testing"
)

func TestParseScanPayload(t *testing.T) {
	p, err := ParseScanPayload(`{"id":"rec123","name":"Widget"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.ID != "rec123" || p.Name != "Widget" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestParseScanPayloadWithoutName(t *testing.T) {
	p, err := ParseScanPayload(`{"id":"rec123"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.ID != "rec123" || p.Name != "" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestParseScanPayloadMalformed(t *testing.T) {
	cases := []string{
		"",
		"not json",
		"https://example.com/p/123",
		`{"name":"no id"}`,
		`{"id":""}`,
		`[1,2,3]`,
	}
	for _, raw := range cases {
		if _, err := ParseScanPayload(raw); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("raw %q: expected ErrMalformedPayload, got %v", raw, err)
		}
	}
}

func TestFingerprintCoarse(t *testing.T) {
	a := PendingOperation{Kind: KindWriteoff, ProductID: "rec123", Quantity: 3}
	b := PendingOperation{Kind: KindWriteoff, ProductID: "rec123", Quantity: 3}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("identical operations must share a fingerprint")
	}
	c := PendingOperation{Kind: KindSupply, ProductID: "rec123", Quantity: 3}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("kinds must not collide")
	}
	if got := a.Fingerprint(); got != "writeoff-rec123-3" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
}

func TestOperationKindValid(t *testing.T) {
	if !KindWriteoff.Valid() || !KindSupply.Valid() {
		t.Fatalf("known kinds must be valid")
	}
	if OperationKind("transfer").Valid() {
		t.Fatalf("unknown kind must be invalid")
	}
}

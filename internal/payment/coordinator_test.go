package payment

import "testing"

func TestVerifySignatureMatchesHMAC(t *testing.T) {
	c := &Coordinator{webhookSecret: "topsecret"}
	payload := []byte(`{"status":"approved","external_reference":"11111111-1111-1111-1111-111111111111","data_id":"pay_1"}`)

	// A signature computed with the wrong secret must be rejected.
	sig := hmacHex(payload, "wrongsecret")
	if c.VerifySignature(payload, sig) {
		t.Fatalf("expected signature computed with a different secret to fail verification")
	}

	valid := hmacHex(payload, "topsecret")
	if !c.VerifySignature(payload, valid) {
		t.Fatalf("expected signature computed with the matching secret to verify")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	c := &Coordinator{webhookSecret: "topsecret"}
	payload := []byte(`{"status":"approved","data_id":"pay_1"}`)
	sig := hmacHex(payload, "topsecret")

	tampered := []byte(`{"status":"rejected","data_id":"pay_1"}`)
	if c.VerifySignature(tampered, sig) {
		t.Fatalf("expected signature to fail against a tampered payload")
	}
}

func TestParseExternalReferenceRejectsGarbage(t *testing.T) {
	if _, err := parseExternalReference("not-a-uuid"); err == nil {
		t.Fatalf("expected an error for a non-uuid external_reference")
	}
}

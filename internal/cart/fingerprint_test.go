package cart

import "testing"

func TestFingerprintOrderIndependent(t *testing.T) {
	a := fingerprint([]int64{3, 1, 2})
	b := fingerprint([]int64{1, 2, 3})
	if a != b {
		t.Fatalf("expected order-independent fingerprint, got %q vs %q", a, b)
	}
}

func TestFingerprintDistinguishesSets(t *testing.T) {
	a := fingerprint([]int64{1, 2})
	b := fingerprint([]int64{1, 3})
	if a == b {
		t.Fatalf("expected distinct fingerprints for distinct option sets")
	}
}

func TestFingerprintEmptySelection(t *testing.T) {
	a := fingerprint(nil)
	b := fingerprint([]int64{})
	if a != b {
		t.Fatalf("expected nil and empty selection to fingerprint identically")
	}
}

func TestUniqueInt64(t *testing.T) {
	got := uniqueInt64([]int64{1, 2, 2, 3, 1})
	if len(got) != 3 {
		t.Fatalf("expected 3 unique values, got %v", got)
	}
}

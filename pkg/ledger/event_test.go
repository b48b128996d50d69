package ledger

import (
	"encoding/json"
	"testing"
)

func TestMetaUnmarshal_WellFormed(t *testing.T) {
	data := []byte(`{"tokens":100,"provider":"stripe","amount":"9.99","currency":"USD","order_id":"ord-1"}`)

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if m.Tokens != 100 {
		t.Fatalf("Tokens = %d, want 100", m.Tokens)
	}
	if m.Provider != "stripe" || m.Currency != "USD" || m.OrderID != "ord-1" {
		t.Fatalf("string fields mismatch: %+v", m)
	}
	if m.Amount.String() != "9.99" {
		t.Fatalf("Amount = %s, want 9.99", m.Amount.String())
	}
}

func TestMetaUnmarshal_MalformedFieldIsZeroed(t *testing.T) {
	// tokens carries a string written by an older release; the other
	// fields must still decode.
	data := []byte(`{"tokens":"lots","provider":"stripe","files":3}`)

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if m.Tokens != 0 {
		t.Fatalf("malformed tokens should zero, got %d", m.Tokens)
	}
	if m.Provider != "stripe" || m.Files != 3 {
		t.Fatalf("intact fields lost: %+v", m)
	}
}

func TestMetaUnmarshal_NotAnObject(t *testing.T) {
	var m Meta
	if err := json.Unmarshal([]byte(`"oops"`), &m); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if m != (Meta{}) {
		t.Fatalf("expected zero Meta, got %+v", m)
	}
}

func TestMetaUnmarshal_UnknownFieldsIgnored(t *testing.T) {
	var m Meta
	if err := json.Unmarshal([]byte(`{"tokens":5,"legacy_field":true}`), &m); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if m.Tokens != 5 {
		t.Fatalf("Tokens = %d, want 5", m.Tokens)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	in := Meta{Tokens: 7, Reason: "upload", Files: 7}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var out Meta
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if out.Tokens != in.Tokens || out.Reason != in.Reason || out.Files != in.Files {
		t.Fatalf("round trip mismatch: in %+v out %+v", in, out)
	}
}

package socsync

import (
	"encoding/json"
	"testing"
)

func TestDecodeSyncPayload(t *testing.T) {
	payload, err := decodeSyncPayload([]byte(`{"run_id": 9, "company_code": 100}`))
	if err != nil {
		t.Fatalf("decodeSyncPayload: %v", err)
	}
	if payload.RunId != 9 || payload.CompanyCode != 100 {
		t.Fatalf("payload = %+v, want run 9 company 100", payload)
	}
}

func TestDecodeSyncPayloadRejectsMalformedAndIncomplete(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{"run_id": 0, "company_code": 100}`,
		`{"run_id": 9}`,
		`{}`,
	} {
		if _, err := decodeSyncPayload([]byte(data)); err == nil {
			t.Fatalf("decodeSyncPayload(%q) accepted an invalid message", data)
		}
	}
}

func TestPushEnvelopeDecodesBase64Data(t *testing.T) {
	// Pub/Sub push bodies carry the message data base64-encoded; the
	// envelope's []byte field must decode it transparently.
	body := []byte(`{"message": {"data": "eyJydW5faWQiOiA3LCAiY29tcGFueV9jb2RlIjogMTAwfQ==", "messageId": "m1"}, "subscription": "s"}`)

	var envelope PubSubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	payload, err := decodeSyncPayload(envelope.Message.Data)
	if err != nil {
		t.Fatalf("decodeSyncPayload: %v", err)
	}
	if payload.RunId != 7 || payload.CompanyCode != 100 {
		t.Fatalf("payload = %+v, want run 7 company 100", payload)
	}
}

package wire

import "testing"

func TestEncodeDecodeChat(t *testing.T) {
	data, err := EncodeChat(ChatPayload{UID: "u1", Content: "hi", VectorClock: []byte(`{"a":1}`)})
	if err != nil {
		t.Fatalf("EncodeChat: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Type != TypeChat || frame.Chat == nil {
		t.Fatalf("decoded frame = %+v, want chat payload", frame)
	}
	if frame.Chat.UID != "u1" || frame.Chat.Content != "hi" {
		t.Errorf("chat payload = %+v", frame.Chat)
	}
}

func TestEncodeDecodeSyncRequest(t *testing.T) {
	data, err := EncodeSyncRequest(SyncRequestPayload{VectorClock: []byte(`{"a":2}`)})
	if err != nil {
		t.Fatalf("EncodeSyncRequest: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Type != TypeSyncRequest || frame.SyncRequest == nil {
		t.Fatalf("decoded frame = %+v, want sync_request payload", frame)
	}
}

func TestEncodeDecodeSyncResponse(t *testing.T) {
	data, err := EncodeSyncResponse(SyncResponsePayload{
		Messages: []SyncMessage{
			{UID: "u1", SenderPK: "aa", Content: "hi", Timestamp: 1000, VectorClock: []byte(`{"aa":1}`)},
		},
	})
	if err != nil {
		t.Fatalf("EncodeSyncResponse: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Type != TypeSyncResponse || frame.SyncResponse == nil {
		t.Fatalf("decoded frame = %+v, want sync_response payload", frame)
	}
	if len(frame.SyncResponse.Messages) != 1 || frame.SyncResponse.Messages[0].UID != "u1" {
		t.Errorf("sync response messages = %+v", frame.SyncResponse.Messages)
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	if _, err := DecodeFrame([]byte(`{"type":"bogus"}`)); err != ErrUnknownFrameType {
		t.Errorf("DecodeFrame(bogus type) = %v, want ErrUnknownFrameType", err)
	}
}

func TestDecodeFrameMalformedJSON(t *testing.T) {
	if _, err := DecodeFrame([]byte(`not json`)); err == nil {
		t.Errorf("DecodeFrame(malformed) = nil error, want error")
	}
}

func TestDecodeFrameMissingVectorClockDoesNotCrash(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"chat","uid":"u1","content":"hi"}`))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Chat.VectorClock != nil {
		t.Errorf("VectorClock = %q, want nil for absent field", frame.Chat.VectorClock)
	}
}

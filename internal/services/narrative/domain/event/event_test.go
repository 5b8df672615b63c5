package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNewStampsTypeAndUTC(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	evt := New(EndingReached{ComicID: "c1", NodeID: "end", EndingType: "good"}, at)
	if evt.Type != TypeEndingReached {
		t.Fatalf("type = %q, want %q", evt.Type, TypeEndingReached)
	}
	if evt.Timestamp.Location() != time.UTC || !evt.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v", evt.Timestamp)
	}
}

func TestEventJSONIncludesPayload(t *testing.T) {
	t.Parallel()

	evt := New(ChoiceRecorded{ComicID: "c1", NodeID: "start", ChoiceID: "go-right", TargetNodeID: "hall"}, time.Unix(0, 0))
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != string(TypeChoiceRecorded) || decoded.Payload["choiceId"] != "go-right" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestUserTopic(t *testing.T) {
	t.Parallel()

	topic := UserTopic(" reader-7 ")
	if topic != "user:reader-7" {
		t.Fatalf("topic = %q", topic)
	}
	userID, ok := UserFromTopic(topic)
	if !ok || userID != "reader-7" {
		t.Fatalf("UserFromTopic = %q, %v", userID, ok)
	}
	if _, ok := UserFromTopic("comic:1"); ok {
		t.Fatal("expected non-user topic to be rejected")
	}
	if _, ok := UserFromTopic("user:"); ok {
		t.Fatal("expected empty user id to be rejected")
	}
}

func TestSinkFunc(t *testing.T) {
	t.Parallel()

	var gotTopic string
	var gotCount int
	sink := SinkFunc(func(_ context.Context, topic string, events ...Event) error {
		gotTopic = topic
		gotCount = len(events)
		return nil
	})
	if err := sink.Publish(context.Background(), "user:a", New(ProgressSynced{Version: 2}, time.Now())); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotTopic != "user:a" || gotCount != 1 {
		t.Fatalf("topic=%q count=%d", gotTopic, gotCount)
	}
	if err := Discard.Publish(context.Background(), "user:a"); err != nil {
		t.Fatalf("discard: %v", err)
	}
}

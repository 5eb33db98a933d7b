package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/todos/stream"
)

type fakeRemover struct {
	removed []string
	urls    []string
	err     error
}

func (f *fakeRemover) RemoveAttachment(_ context.Context, itemID, attachmentURL string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, itemID)
	f.urls = append(f.urls, attachmentURL)
	return nil
}

func removeRecord(todoID, attachmentURL string) events.DynamoDBEventRecord {
	old := map[string]events.DynamoDBAttributeValue{
		"userId": events.NewStringAttribute("u1"),
		"todoId": events.NewStringAttribute(todoID),
		"name":   events.NewStringAttribute("Buy milk"),
	}
	if attachmentURL != "" {
		old["attachmentUrl"] = events.NewStringAttribute(attachmentURL)
	}
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + todoID,
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"userId": events.NewStringAttribute("u1"),
				"todoId": events.NewStringAttribute(todoID),
			},
			OldImage: old,
		},
	}
}

func TestNewHandler(t *testing.T) {
	// Test with nil remover and logger (should not panic)
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleAttachmentCleanup_RemovesAttachment(t *testing.T) {
	r := &fakeRemover{}
	h := stream.NewHandler(r, nil)

	err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			removeRecord("t1", "https://bucket.s3.amazonaws.com/t1"),
			removeRecord("t2", ""),
			removeRecord("t3", "https://bucket.s3.amazonaws.com/t3"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.removed) != 2 || r.removed[0] != "t1" || r.removed[1] != "t3" {
		t.Errorf("expected t1 and t3 removed, got %v", r.removed)
	}
	if len(r.urls) != 2 || r.urls[0] != "https://bucket.s3.amazonaws.com/t1" || r.urls[1] != "https://bucket.s3.amazonaws.com/t3" {
		t.Errorf("expected stored attachment URLs passed through, got %v", r.urls)
	}
}

func TestHandleAttachmentCleanup_IgnoresOtherEvents(t *testing.T) {
	r := &fakeRemover{}
	h := stream.NewHandler(r, nil)

	insert := removeRecord("t1", "https://bucket/t1")
	insert.EventName = "INSERT"
	modify := removeRecord("t2", "https://bucket/t2")
	modify.EventName = "MODIFY"

	err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{insert, modify},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.removed) != 0 {
		t.Errorf("expected nothing removed, got %v", r.removed)
	}
}

func TestHandleAttachmentCleanup_FallsBackToKeys(t *testing.T) {
	r := &fakeRemover{}
	h := stream.NewHandler(r, nil)

	record := removeRecord("t1", "https://bucket/t1")
	delete(record.Change.OldImage, "todoId")

	if err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{record},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.removed) != 1 || r.removed[0] != "t1" {
		t.Errorf("expected t1 removed, got %v", r.removed)
	}
}

func TestHandleAttachmentCleanup_NonStringAttachment(t *testing.T) {
	r := &fakeRemover{}
	h := stream.NewHandler(r, nil)

	record := removeRecord("t1", "")
	record.Change.OldImage["attachmentUrl"] = events.NewNullAttribute()

	if err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{record},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.removed) != 0 {
		t.Errorf("expected nothing removed for NULL attachment, got %v", r.removed)
	}
}

func TestHandleAttachmentCleanup_StopsOnError(t *testing.T) {
	cause := errors.New("access denied")
	r := &fakeRemover{err: cause}
	h := stream.NewHandler(r, nil)

	err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{removeRecord("t1", "https://bucket/t1")},
	})
	if !errors.Is(err, cause) {
		t.Errorf("expected remover error returned for retry, got %v", err)
	}
}

func TestHandleAttachmentCleanup_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(&fakeRemover{}, nil)
	if err := h.HandleAttachmentCleanup(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

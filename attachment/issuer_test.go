package attachment_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/todos/attachment"
	"github.com/jacentio/todos/todo"
)

type fakePresigner struct {
	input   *s3.PutObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = params
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(params.Bucket) + ".s3.amazonaws.com/" + aws.ToString(params.Key) + "?X-Amz-Signature=abc&X-Amz-Expires=300",
		Method: http.MethodPut,
	}, nil
}

type fakeObjects struct {
	deleted []string
	err     error
}

func (f *fakeObjects) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := attachment.DefaultConfig()
	if cfg.Expiry != 5*time.Minute {
		t.Errorf("expected 5m expiry, got %v", cfg.Expiry)
	}
	if cfg.NumShards != 1 {
		t.Errorf("expected NumShards 1, got %d", cfg.NumShards)
	}
}

func TestPresignUpload(t *testing.T) {
	p := &fakePresigner{}
	issuer := attachment.New(p, nil, attachment.Config{Bucket: "todos-attachments", Expiry: 300 * time.Second}, nil)

	url, err := issuer.PresignUpload(context.Background(), "obj123")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}

	if !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("expected authorization in query, got %q", url)
	}
	if aws.ToString(p.input.Bucket) != "todos-attachments" {
		t.Errorf("expected bucket 'todos-attachments', got %q", aws.ToString(p.input.Bucket))
	}
	if aws.ToString(p.input.Key) != "obj123" {
		t.Errorf("expected key 'obj123', got %q", aws.ToString(p.input.Key))
	}
	if p.expires != 300*time.Second {
		t.Errorf("expected 300s expiry, got %v", p.expires)
	}
}

func TestPresignUpload_SameKeyOnReissue(t *testing.T) {
	p := &fakePresigner{}
	issuer := attachment.New(p, nil, attachment.Config{Bucket: "b", NumShards: 16}, nil)

	if _, err := issuer.PresignUpload(context.Background(), "item-1"); err != nil {
		t.Fatalf("presign: %v", err)
	}
	first := aws.ToString(p.input.Key)
	if _, err := issuer.PresignUpload(context.Background(), "item-1"); err != nil {
		t.Fatalf("presign: %v", err)
	}
	if second := aws.ToString(p.input.Key); second != first {
		t.Errorf("expected same object key, got %q then %q", first, second)
	}
	if first != issuer.ObjectKey("item-1") {
		t.Errorf("expected ObjectKey to match presigned key, got %q", issuer.ObjectKey("item-1"))
	}
}

func TestPresignUpload_Failure(t *testing.T) {
	cause := errors.New("access denied")
	issuer := attachment.New(&fakePresigner{err: cause}, nil, attachment.Config{Bucket: "b"}, nil)

	_, err := issuer.PresignUpload(context.Background(), "obj123")
	if todo.KindOf(err) != todo.KindURLIssuance {
		t.Errorf("expected KindURLIssuance, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause preserved, got %v", err)
	}
}

func TestPresignUpload_NoBucket(t *testing.T) {
	p := &fakePresigner{}
	issuer := attachment.New(p, nil, attachment.Config{}, nil)

	_, err := issuer.PresignUpload(context.Background(), "obj123")
	if !errors.Is(err, attachment.ErrNoBucket) {
		t.Errorf("expected ErrNoBucket, got %v", err)
	}
	if !errors.Is(err, todo.ErrURLIssuance) {
		t.Errorf("expected url issuance kind, got %v", err)
	}
	if p.input != nil {
		t.Error("expected presigner not to be called")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     attachment.Config
		expires time.Duration
	}{
		{"zero expiry gets default", attachment.Config{Bucket: "b"}, 5 * time.Minute},
		{"negative expiry gets default", attachment.Config{Bucket: "b", Expiry: -time.Second}, 5 * time.Minute},
		{"expiry over 7 days gets capped", attachment.Config{Bucket: "b", Expiry: 30 * 24 * time.Hour}, 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePresigner{}
			issuer := attachment.New(p, nil, tt.cfg, nil)
			if _, err := issuer.PresignUpload(context.Background(), "x"); err != nil {
				t.Fatalf("presign: %v", err)
			}
			if p.expires != tt.expires {
				t.Errorf("expected expiry %v, got %v", tt.expires, p.expires)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	objects := &fakeObjects{}
	issuer := attachment.New(&fakePresigner{}, objects, attachment.Config{Bucket: "b"}, nil)

	if err := issuer.Remove(context.Background(), "obj123"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "b/obj123" {
		t.Errorf("expected b/obj123 deleted, got %v", objects.deleted)
	}
}

func TestRemove_Errors(t *testing.T) {
	cause := errors.New("throttled")

	tests := []struct {
		name    string
		objects attachment.ObjectAPI
		bucket  string
	}{
		{"no object client", nil, "b"},
		{"no bucket", &fakeObjects{}, ""},
		{"delete fails", &fakeObjects{err: cause}, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := attachment.New(&fakePresigner{}, tt.objects, attachment.Config{Bucket: tt.bucket}, nil)
			if err := issuer.Remove(context.Background(), "obj123"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestKeyFromURL(t *testing.T) {
	issuer := attachment.New(&fakePresigner{}, nil, attachment.Config{Bucket: "b"}, nil)

	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"virtual hosted", "https://b.s3.amazonaws.com/obj123", "obj123", true},
		{"virtual hosted sharded", "https://b.s3.eu-west-1.amazonaws.com/3f/obj123", "3f/obj123", true},
		{"path style", "https://s3.eu-west-1.amazonaws.com/b/3f/obj123", "3f/obj123", true},
		{"empty", "", "", false},
		{"no path", "https://b.s3.amazonaws.com/", "", false},
		{"relative", "obj123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := issuer.KeyFromURL(tt.url)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestRemoveAttachment_UsesStoredKey(t *testing.T) {
	objects := &fakeObjects{}
	// Stored under a single-shard layout, removed after resharding.
	issuer := attachment.New(&fakePresigner{}, objects, attachment.Config{Bucket: "b", NumShards: 16}, nil)

	if err := issuer.RemoveAttachment(context.Background(), "obj123", "https://b.s3.amazonaws.com/obj123"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "b/obj123" {
		t.Errorf("expected b/obj123 deleted, got %v", objects.deleted)
	}
}

func TestRemoveAttachment_FallsBackToObjectKey(t *testing.T) {
	objects := &fakeObjects{}
	issuer := attachment.New(&fakePresigner{}, objects, attachment.Config{Bucket: "b", NumShards: 16}, nil)

	if err := issuer.RemoveAttachment(context.Background(), "obj123", "not a url"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	want := "b/" + issuer.ObjectKey("obj123")
	if len(objects.deleted) != 1 || objects.deleted[0] != want {
		t.Errorf("expected %s deleted, got %v", want, objects.deleted)
	}
}

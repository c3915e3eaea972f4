package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/foxseedlab/gijiroku/internal/objectstore"
)

type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	getErr   error
	putErr   error
	getCalls int
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey", msg: "no such key"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	if in.ContentType != nil {
		m.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_PutThenGet(t *testing.T) {
	mock := newMockS3()
	store := NewS3Store(mock, "bucket")
	ctx := context.Background()

	if err := store.Put(ctx, "meeting_logs/room_1.json", []byte(`{"a":1}`), "application/json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Get(ctx, "meeting_logs/room_1.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("unexpected body: %s", got)
	}
	if mock.types["meeting_logs/room_1.json"] != "application/json" {
		t.Fatalf("unexpected content type: %q", mock.types["meeting_logs/room_1.json"])
	}
}

func TestS3Store_GetMissingMapsToNotFound(t *testing.T) {
	store := NewS3Store(newMockS3(), "bucket")
	_, err := store.Get(context.Background(), "Recap/none.json")
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Store_HeadStyleNotFound(t *testing.T) {
	mock := newMockS3()
	mock.getErr = &apiError{code: "NotFound", msg: "not found"}
	store := NewS3Store(mock, "bucket")
	_, err := store.Get(context.Background(), "Recap/none.json")
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Store_OtherErrorsPropagate(t *testing.T) {
	mock := newMockS3()
	mock.getErr = &apiError{code: "AccessDenied", msg: "denied"}
	store := NewS3Store(mock, "bucket")
	_, err := store.Get(context.Background(), "Recap/x.json")
	if err == nil || errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected non-not-found error, got %v", err)
	}
}

func TestS3Store_PutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	store := NewS3Store(mock, "bucket")
	if err := store.Put(context.Background(), "k", []byte("v"), "text/plain"); err == nil {
		t.Fatal("expected put error")
	}
}

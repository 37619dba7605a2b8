package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/infrastructure/resilience"
)

type objectAPIFake struct {
	objects  map[string][]byte
	putFails int
	puts     int
	types    map[string]string
}

func (f *objectAPIFake) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.puts++
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.putFails > 0 {
		f.putFails--
		return nil, errors.New("connection reset")
	}
	f.objects[*in.Key] = raw
	f.types[*in.Key] = *in.ContentType
	return &awss3.PutObjectOutput{}, nil
}

func (f *objectAPIFake) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	raw, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(raw)))}, nil
}

func (f *objectAPIFake) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &awss3.DeleteObjectOutput{}, nil
}

func newFakeStorage() (*Storage, *objectAPIFake) {
	fake := &objectAPIFake{objects: map[string][]byte{}, types: map[string]string{}}
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
		Overrides:           map[string]resilience.Override{},
	})
	return newWithClient(fake, "scans", "/docscan/", exec), fake
}

func TestSaveRetriesWithReplayableBody(t *testing.T) {
	s, fake := newFakeStorage()
	fake.putFails = 1

	if err := s.Save(context.Background(), "captures/c-1/v1.jpg", strings.NewReader("jpeg")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if fake.puts != 2 {
		t.Fatalf("expected one retry, got %d puts", fake.puts)
	}
	if string(fake.objects["docscan/captures/c-1/v1.jpg"]) != "jpeg" {
		t.Fatalf("object not stored under prefixed key: %v", fake.objects)
	}
	if fake.types["docscan/captures/c-1/v1.jpg"] != "image/jpeg" {
		t.Fatalf("unexpected content type")
	}
}

func TestOpenMissingObjectIsNotFound(t *testing.T) {
	s, _ := newFakeStorage()
	if _, err := s.Open(context.Background(), "captures/none.jpg"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteThenOpen(t *testing.T) {
	s, _ := newFakeStorage()
	ctx := context.Background()
	_ = s.Save(ctx, "k.jpg", strings.NewReader("x"))

	rc, err := s.Open(ctx, "k.jpg")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rc.Close()
	if err := s.Delete(ctx, "k.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, "k.jpg"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

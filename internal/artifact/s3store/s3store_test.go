package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"vidmerge/internal/artifact"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
	"vidmerge/internal/testsupport"
	"vidmerge/internal/videoid"
)

type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	headErr  error
	putErr   error
	puts     int
	bucketOK bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string), bucketOK: true}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketOK {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestStoreRoundTripWithPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := New(fake, Options{Bucket: "clips", Prefix: "videos"}, logging.NewNop())
	id := videoid.New()

	src := filepath.Join(t.TempDir(), "src.mp4")
	testsupport.WriteFakeMP4(t, src, "s3")

	if err := store.Upload(ctx, src, artifact.TierMerged, id); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key := "videos/merged/" + string(id) + ".mp4"
	if _, ok := fake.objects[key]; !ok {
		t.Fatalf("expected object at %s, have %v", key, fake.objects)
	}
	if fake.types[key] != "video/mp4" {
		t.Fatalf("unexpected content type %q", fake.types[key])
	}

	ok, err := store.Exists(ctx, artifact.TierMerged, id)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, artifact.TierUploaded, id)
	if err != nil || ok {
		t.Fatalf("expected absent in uploaded tier, got %v, %v", ok, err)
	}

	dst := filepath.Join(t.TempDir(), "dst.mp4")
	if err := store.Download(ctx, artifact.TierMerged, id, dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	want, _ := os.ReadFile(src)
	got, _ := os.ReadFile(dst)
	if !bytes.Equal(want, got) {
		t.Fatal("downloaded bytes differ")
	}
}

func TestDownloadMissingIsNotFound(t *testing.T) {
	store := New(newFakeS3(), Options{Bucket: "clips"}, nil)
	err := store.Download(context.Background(), artifact.TierUploaded, videoid.New(), filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, services.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExistsTransportErrorIsUnavailable(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = errors.New("dial tcp: connection refused")
	store := New(fake, Options{Bucket: "clips"}, nil)
	_, err := store.Exists(context.Background(), artifact.TierUploaded, videoid.New())
	if !errors.Is(err, services.KindStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestUploadRejectsNonVideoBeforeSending(t *testing.T) {
	fake := newFakeS3()
	store := New(fake, Options{Bucket: "clips"}, nil)
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := store.Upload(context.Background(), src, artifact.TierUploaded, videoid.New())
	if !errors.Is(err, services.KindInvalidArtifact) {
		t.Fatalf("expected invalid artifact, got %v", err)
	}
	if fake.puts != 0 {
		t.Fatal("rejected content must not be sent")
	}
}

func TestUploadClassifiesStoreErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"store rejects", &smithy.GenericAPIError{Code: "InvalidArgument"}, services.KindInvalidArtifact},
		{"transport", errors.New("i/o timeout"), services.KindStorageUnavailable},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, services.KindStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeS3()
			fake.putErr = tt.err
			store := New(fake, Options{Bucket: "clips"}, nil)
			src := filepath.Join(t.TempDir(), "src.mp4")
			testsupport.WriteFakeMP4(t, src, "x")
			err := store.Upload(context.Background(), src, artifact.TierUploaded, videoid.New())
			if services.KindOf(err) != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	fake := newFakeS3()
	store := New(fake, Options{Bucket: "clips"}, nil)
	if err := store.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	fake.bucketOK = false
	if err := store.Check(context.Background()); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
}

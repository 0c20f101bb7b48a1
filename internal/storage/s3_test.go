package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/lalithsaicharan00/cloud-storage-api/internal/config"
)

type fakeS3 struct {
	puts          []*s3.PutObjectInput
	deleteBatches [][]string
	PutErr        error
	GetErr        error
	DeleteKeyErr  map[string]string
	bucketExists  bool
	createdBucket bool
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.PutErr
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("body:" + aws.ToString(in.Key)))}, nil
}

func (f *fakeS3) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	keys := make([]string, 0, len(in.Delete.Objects))
	out := &s3.DeleteObjectsOutput{}
	for _, o := range in.Delete.Objects {
		k := aws.ToString(o.Key)
		keys = append(keys, k)
		if msg, ok := f.DeleteKeyErr[k]; ok {
			out.Errors = append(out.Errors, types.Error{Key: aws.String(k), Message: aws.String(msg)})
		}
	}
	f.deleteBatches = append(f.deleteBatches, keys)
	return out, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketExists {
		return &s3.HeadBucketOutput{}, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeS3) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createdBucket = true
	return &s3.CreateBucketOutput{}, nil
}

func newTestS3(f *fakeS3) *S3Storage {
	return newS3Storage(f, cfg.StorageConfig{
		Bucket:    "bucket",
		Region:    "us-east-1",
		Endpoint:  "http://minio:9000/",
		KeyPrefix: "cloud",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestS3Storage_Upload(t *testing.T) {
	f := &fakeS3{}
	s := newTestS3(f)

	stored, err := s.Upload(context.Background(), Object{
		Body:        strings.NewReader("hello"),
		Size:        5,
		Name:        "Report.PDF",
		ContentType: "application/pdf",
		FolderHint:  "files/u1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.ObjectID, "cloud/files/u1/"))
	assert.True(t, strings.HasSuffix(stored.ObjectID, ".pdf"))
	assert.Equal(t, "http://minio:9000/bucket/"+stored.ObjectID, stored.URL)
	assert.Equal(t, int64(5), stored.SizeBytes)
	assert.Equal(t, "application/pdf", stored.MimeType)

	require.Len(t, f.puts, 1)
	assert.Equal(t, "application/pdf", aws.ToString(f.puts[0].ContentType))
	assert.Equal(t, int64(5), aws.ToInt64(f.puts[0].ContentLength))
}

func TestS3Storage_UploadError(t *testing.T) {
	s := newTestS3(&fakeS3{PutErr: errors.New("denied")})
	_, err := s.Upload(context.Background(), Object{Body: strings.NewReader("x"), Name: "a"})
	assert.ErrorContains(t, err, "denied")
}

func TestS3Storage_Open(t *testing.T) {
	s := newTestS3(&fakeS3{})
	rc, err := s.Open(context.Background(), "k")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "body:k", string(body))

	s = newTestS3(&fakeS3{GetErr: &types.NoSuchKey{}})
	_, err = s.Open(context.Background(), "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Storage_BulkDeleteBatches(t *testing.T) {
	f := &fakeS3{DeleteKeyErr: map[string]string{"k-1500": "AccessDenied"}}
	s := newTestS3(f)

	ids := make([]string, 2001)
	for i := range ids {
		ids[i] = fmt.Sprintf("k-%d", i)
	}

	err := s.BulkDelete(context.Background(), ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "k-1500")

	require.Len(t, f.deleteBatches, 3)
	assert.Len(t, f.deleteBatches[0], 1000)
	assert.Len(t, f.deleteBatches[1], 1000)
	assert.Len(t, f.deleteBatches[2], 1)

	assert.NoError(t, s.BulkDelete(context.Background(), nil))
}

func TestS3Storage_EnsureBucket(t *testing.T) {
	f := &fakeS3{}
	require.NoError(t, newTestS3(f).ensureBucket(context.Background()))
	assert.True(t, f.createdBucket)

	f = &fakeS3{bucketExists: true}
	require.NoError(t, newTestS3(f).ensureBucket(context.Background()))
	assert.False(t, f.createdBucket)
}

func TestObjectKey(t *testing.T) {
	k := objectKey("/p/", "avatars/u", `C:\dir\photo.JPG`)
	assert.True(t, strings.HasPrefix(k, "p/avatars/u/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))

	assert.NotEqual(t, objectKey("", "", "a"), objectKey("", "", "a"))
	assert.NotContains(t, objectKey("", "", "x.averyveryverylongextension"), "averyvery")
}

func TestMemory(t *testing.T) {
	m := NewMemory("mem://")
	ctx := context.Background()

	stored, err := m.Upload(ctx, Object{Body: strings.NewReader("abc"), Name: "a.txt", ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.SizeBytes)
	assert.Equal(t, 1, m.Len())

	rc, err := m.Open(ctx, stored.ObjectID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, m.BulkDelete(ctx, []string{stored.ObjectID, "missing"}))
	_, err = m.Open(ctx, stored.ObjectID)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

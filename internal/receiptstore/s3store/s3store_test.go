package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/restockr/internal/receiptstore"
)

type object struct {
	data        []byte
	contentType string
}

type fakeS3 struct {
	objects map[string]object
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]object{}} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = object{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: aws.String(obj.contentType),
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func withFake(t *testing.T, fake *fakeS3) *s3.Options {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew
	})

	var applied s3.Options
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		for _, fn := range optFns {
			fn(&applied)
		}
		return fake
	}
	return &applied
}

func TestS3StoreRoundTrip(t *testing.T) {
	fake := newFakeS3()
	applied := withFake(t, fake)

	store, err := New(context.Background(), Options{
		Bucket:    "receipts",
		Region:    "us-east-1",
		Endpoint:  "http://minio:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", aws.ToString(applied.BaseEndpoint))
	assert.True(t, applied.UsePathStyle)

	ctx := context.Background()
	key, err := store.Save(ctx, "user-1", "image/webp", strings.NewReader("webp bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".webp"))

	rc, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "webp bytes", string(data))
	assert.Equal(t, "image/webp", mimeType)

	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), receiptstore.ErrNotFound)

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, receiptstore.ErrNotFound)
}

func TestS3StoreDefaultEndpoint(t *testing.T) {
	applied := withFake(t, newFakeS3())

	_, err := New(context.Background(), Options{Bucket: "receipts", Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Nil(t, applied.BaseEndpoint)
	assert.False(t, applied.UsePathStyle)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3StoreConfigError(t *testing.T) {
	withFake(t, newFakeS3())
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no region")
	}

	_, err := New(context.Background(), Options{Bucket: "receipts"})
	assert.ErrorContains(t, err, "no region")
}

func TestS3StoreUploadError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	withFake(t, fake)

	store, err := New(context.Background(), Options{Bucket: "receipts"})
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "user-1", "image/jpeg", strings.NewReader("x"))
	assert.ErrorContains(t, err, "access denied")
}

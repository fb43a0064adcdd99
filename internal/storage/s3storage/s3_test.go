package s3storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockS3 struct {
	mock.Mock
}

func (m *MockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *MockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func (m *MockS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, in)
	return &s3.HeadBucketOutput{}, args.Error(0)
}

func TestStore_Put(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3)
	store := New(client, "media", "atelier", "https://cdn.example.com")

	client.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Bucket == "media" &&
			strings.HasPrefix(*in.Key, "atelier/listings/") &&
			strings.HasSuffix(*in.Key, ".png") &&
			*in.ContentType == "image/png" &&
			*in.ContentLength == 5 &&
			string(body) == "hello"
	})).Return(nil).Once()

	key, err := store.Put(ctx, strings.NewReader("hello"), "cat.PNG", "listings")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "https://cdn.example.com/atelier/listings/"+key, store.URLFor(key, "listings"))

	client.AssertExpectations(t)
}

func TestStore_PutError(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3)
	store := New(client, "media", "", "https://cdn.example.com")

	client.On("PutObject", ctx, mock.Anything).Return(errors.New("throttled")).Once()

	_, err := store.Put(ctx, strings.NewReader("hello"), "a.jpg", "listings")
	assert.ErrorContains(t, err, "throttled")
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing object is not an error", func(t *testing.T) {
		client := new(MockS3)
		store := New(client, "media", "", "https://cdn.example.com")
		client.On("DeleteObject", ctx, mock.Anything).
			Return(&smithy.GenericAPIError{Code: "NoSuchKey"}).Once()

		assert.NoError(t, store.Delete(ctx, "a.jpg", "listings"))
	})

	t.Run("other errors surface", func(t *testing.T) {
		client := new(MockS3)
		store := New(client, "media", "", "https://cdn.example.com")
		client.On("DeleteObject", ctx, mock.Anything).
			Return(&smithy.GenericAPIError{Code: "AccessDenied"}).Once()

		assert.Error(t, store.Delete(ctx, "a.jpg", "listings"))
	})
}

func TestStore_EnsureNamespaceChecksBucketOnce(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3)
	store := New(client, "media", "", "https://cdn.example.com")

	client.On("HeadBucket", ctx, mock.Anything).Return(nil).Once()

	require.NoError(t, store.EnsureNamespace(ctx, "listings"))
	require.NoError(t, store.EnsureNamespace(ctx, "listings"))

	client.AssertNumberOfCalls(t, "HeadBucket", 1)
}

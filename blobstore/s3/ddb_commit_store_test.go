package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/pqcodec/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB table keyed by base_uri and version.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool {
		if aws.ToBool(params.ScanIndexForward) {
			return version(items[i]) < version(items[j])
		}
		return version(items[i]) > version(items[j])
	})

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestDDBCommitStore(ddb DDBClient, baseURI string) (*DDBCommitStore, *MockS3Client) {
	client := new(MockS3Client)
	return NewDDBCommitStore(NewStore(client, "test-bucket", "test/"), ddb, "pqcodec-commits", baseURI), client
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, blobstore.CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte("codecs/000001.pqc")))
	assert.Equal(t, "codecs/000001.pqc", readCurrent(t, store))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	// Past nine commits string ordering of versions would break.
	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte(fmt.Sprintf("codecs/%06d.pqc", i))))
	}

	assert.Equal(t, "codecs/000012.pqc", readCurrent(t, store))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), v)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte("codecs/000001.pqc")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, blobstore.CurrentName, []byte(fmt.Sprintf("codecs/%06d.pqc", id+2)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrConcurrentModification):
				conflicts++
			case err == nil:
				successes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()
	assert.Greater(t, successes, 0, "at least one writer should succeed")
	assert.Equal(t, 5, successes+conflicts)

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1+successes), v)
}

func TestDDBCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), blobstore.CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1, _ := newTestDDBCommitStore(ddb, "s3://bucket-a/path/")
	store2, _ := newTestDDBCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, blobstore.CurrentName, []byte("codecs/a.pqc")))
	require.NoError(t, store2.Put(ctx, blobstore.CurrentName, []byte("codecs/b.pqc")))

	assert.Equal(t, "codecs/a.pqc", readCurrent(t, store1))
	assert.Equal(t, "codecs/b.pqc", readCurrent(t, store2))
}

func TestDDBCommitStore_DelegatesBlobsToS3(t *testing.T) {
	store, client := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "test/codecs/000001.pqc"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "codecs/000001.pqc", []byte("artifact")))
	client.AssertExpectations(t)
}

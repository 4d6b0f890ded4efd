package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// fakeDynamoDB keeps items in a map keyed by job_type|job_name.
type fakeDynamoDB struct {
	dynamodbiface.DynamoDBAPI

	items    map[string]map[string]*dynamodb.AttributeValue
	gets     []*dynamodb.GetItemInput
	getErr   error
	putErr   error
	putCalls int
}

func newFake() *fakeDynamoDB {
	return &fakeDynamoDB{items: map[string]map[string]*dynamodb.AttributeValue{}}
}

func itemKey(m map[string]*dynamodb.AttributeValue) string {
	return aws.StringValue(m["job_type"].S) + "|" + aws.StringValue(m["job_name"].S)
}

func (f *fakeDynamoDB) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamoDB) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.putCalls++
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDBWatermarkStore_GetAbsent(t *testing.T) {
	fake := newFake()
	s := NewDynamoDBWatermarkStore(fake, "job_watermarks", "")

	folder, found, err := s.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, folder)

	require.Len(t, fake.gets, 1)
	in := fake.gets[0]
	assert.Equal(t, "job_watermarks", aws.StringValue(in.TableName))
	assert.True(t, aws.BoolValue(in.ConsistentRead))
	assert.Equal(t, "delta-loader", aws.StringValue(in.Key["job_type"].S))
	assert.Equal(t, "abc", aws.StringValue(in.Key["job_name"].S))
}

func TestDynamoDBWatermarkStore_PutThenGet(t *testing.T) {
	fake := newFake()
	s := NewDynamoDBWatermarkStore(fake, "job_watermarks", "delta-loader")
	fixed := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := model.WithRunID(context.Background(), "run-7")

	require.NoError(t, s.Put(ctx, "abc", "staging/2024-01-03/"))

	stored := fake.items["delta-loader|abc"]
	require.NotNil(t, stored)
	assert.Equal(t, "staging/2024-01-03/", aws.StringValue(stored["last_folder"].S))

	folder, found, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "staging/2024-01-03/", folder)

	rec, err := s.GetRecord(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "run-7", rec.RunID)
	assert.True(t, fixed.Equal(rec.UpdatedAt))
}

func TestDynamoDBWatermarkStore_ItemWithoutLastFolder(t *testing.T) {
	fake := newFake()
	fake.items["delta-loader|abc"] = map[string]*dynamodb.AttributeValue{
		"job_type": {S: aws.String("delta-loader")},
		"job_name": {S: aws.String("abc")},
	}
	s := NewDynamoDBWatermarkStore(fake, "job_watermarks", "")

	_, _, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrStoreAccess)
}

func TestDynamoDBWatermarkStore_ErrorsAreStoreAccess(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"missing table", awserr.New(dynamodb.ErrCodeResourceNotFoundException, "no table", nil), "table 'job_watermarks' not found"},
		{"throttled", awserr.New(dynamodb.ErrCodeProvisionedThroughputExceededException, "slow down", nil), "throttled"},
		{"timeout", errors.New("i/o timeout"), "i/o timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.getErr = tt.err
			fake.putErr = tt.err
			s := NewDynamoDBWatermarkStore(fake, "job_watermarks", "")

			_, _, err := s.Get(context.Background(), "abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrStoreAccess)
			assert.Contains(t, err.Error(), tt.contains)

			err = s.Put(context.Background(), "abc", "f/")
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrStoreAccess)
			le, ok := exception.AsLoaderError(err)
			require.True(t, ok)
			assert.Equal(t, "abc", le.JobID)
			assert.Equal(t, "f/", le.Folder)
		})
	}
}

// Package dynamodb implements the WatermarkStore on an Amazon DynamoDB table keyed by
// (job_type, job_name).
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/awsconfig"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const (
	phase = "watermark"

	attrJobType    = "job_type"
	attrJobName    = "job_name"
	attrLastFolder = "last_folder"
)

// item is the DynamoDB representation of a watermark record.
type item struct {
	JobType    string `dynamodbav:"job_type"`
	JobName    string `dynamodbav:"job_name"`
	LastFolder string `dynamodbav:"last_folder"`
	RunID      string `dynamodbav:"run_id,omitempty"`
	UpdatedAt  string `dynamodbav:"updated_at,omitempty"`
}

// DynamoDBWatermarkStore implements repository.WatermarkStore.
type DynamoDBWatermarkStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
	jobType   string

	now func() time.Time
}

var (
	_ repository.WatermarkStore     = (*DynamoDBWatermarkStore)(nil)
	_ repository.WatermarkInspector = (*DynamoDBWatermarkStore)(nil)
)

// NewDynamoDBWatermarkStore creates a store over an existing client.
func NewDynamoDBWatermarkStore(client dynamodbiface.DynamoDBAPI, tableName, jobType string) *DynamoDBWatermarkStore {
	if jobType == "" {
		jobType = model.DefaultJobType
	}
	return &DynamoDBWatermarkStore{
		client:    client,
		tableName: tableName,
		jobType:   jobType,
		now:       time.Now,
	}
}

// NewClient opens a DynamoDB client with the retrying session used for every AWS service.
func NewClient(opts awsconfig.SessionOptions) (*dynamodb.DynamoDB, error) {
	sess, err := awsconfig.NewSession(opts)
	if err != nil {
		return nil, exception.NewStoreAccessError(phase, "creating AWS session", err)
	}
	logger.Debugf("DynamoDB client created (region: %s, endpoint: %s)", opts.Region, opts.Endpoint)
	return dynamodb.New(sess), nil
}

func (s *DynamoDBWatermarkStore) key(jobID string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		attrJobType: {S: aws.String(s.jobType)},
		attrJobName: {S: aws.String(jobID)},
	}
}

// GetRecord implements repository.WatermarkInspector. Reads are strongly consistent so a
// watermark written by the previous run is always visible.
func (s *DynamoDBWatermarkStore) GetRecord(ctx context.Context, jobID string) (*model.WatermarkRecord, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(jobID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, s.wrap(err, "failed to read watermark").WithJob(jobID)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it item
	if err := dynamodbattribute.UnmarshalMap(out.Item, &it); err != nil {
		return nil, exception.NewStoreAccessError(phase, "failed to decode watermark item", err).WithJob(jobID)
	}
	if _, ok := out.Item[attrLastFolder]; !ok {
		return nil, exception.NewStoreAccessError(phase, fmt.Sprintf("watermark item has no '%s' attribute", attrLastFolder), nil).WithJob(jobID)
	}

	rec := &model.WatermarkRecord{
		JobType:    it.JobType,
		JobName:    it.JobName,
		LastFolder: it.LastFolder,
		RunID:      it.RunID,
	}
	if it.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, it.UpdatedAt); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}

// Get implements repository.WatermarkStore.
func (s *DynamoDBWatermarkStore) Get(ctx context.Context, jobID string) (string, bool, error) {
	rec, err := s.GetRecord(ctx, jobID)
	if err != nil {
		return "", false, err
	}
	if rec == nil {
		return "", false, nil
	}
	return rec.LastFolder, true, nil
}

// Put implements repository.WatermarkStore. The item is replaced unconditionally.
func (s *DynamoDBWatermarkStore) Put(ctx context.Context, jobID, folder string) error {
	av, err := dynamodbattribute.MarshalMap(item{
		JobType:    s.jobType,
		JobName:    jobID,
		LastFolder: folder,
		RunID:      model.RunIDFrom(ctx),
		UpdatedAt:  s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return exception.NewStoreAccessError(phase, "failed to encode watermark item", err).WithJob(jobID).WithFolder(folder)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return s.wrap(err, "failed to write watermark").WithJob(jobID).WithFolder(folder)
	}
	return nil
}

// wrap converts an AWS error into a StoreAccessError with a hint for the common codes.
func (s *DynamoDBWatermarkStore) wrap(err error, msg string) *exception.LoaderError {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case dynamodb.ErrCodeResourceNotFoundException:
			msg = fmt.Sprintf("%s: table '%s' not found", msg, s.tableName)
		case dynamodb.ErrCodeProvisionedThroughputExceededException, dynamodb.ErrCodeRequestLimitExceeded, "ThrottlingException":
			msg = fmt.Sprintf("%s: throttled by DynamoDB", msg)
		}
	}
	return exception.NewStoreAccessError(phase, msg, err)
}

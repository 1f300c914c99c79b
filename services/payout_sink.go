package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/tailorhub/tailorhub-api/config"
	"github.com/tailorhub/tailorhub-api/models"
)

// PayoutSink hands emitted payout instructions to the settlement process
type PayoutSink interface {
	Publish(ctx context.Context, instructions []models.PayoutInstruction) error
}

// payoutBatch is the archived document for one release or refund
type payoutBatch struct {
	BatchID      string                     `json:"batch_id"`
	OrderID      uint                       `json:"order_id"`
	Instructions []models.PayoutInstruction `json:"instructions"`
}

// S3PayoutSink writes each batch as a JSON object to a bucket
type S3PayoutSink struct {
	client *s3.Client
	bucket string
}

// NewS3PayoutSink initializes the S3 client with the configured credentials
func NewS3PayoutSink(ctx context.Context, cfg *config.Config) (*S3PayoutSink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3PayoutSink{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AWSS3Bucket,
	}, nil
}

// payoutKey formats the object key: payouts/{order_id}/{batch_id}.json
func payoutKey(orderID uint, batchID string) string {
	return fmt.Sprintf("payouts/%d/%s.json", orderID, batchID)
}

func encodeBatch(instructions []models.PayoutInstruction) (string, []byte, error) {
	if len(instructions) == 0 {
		return "", nil, nil
	}
	batch := payoutBatch{
		BatchID:      uuid.NewString(),
		OrderID:      instructions[0].OrderID,
		Instructions: instructions,
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode payout batch: %w", err)
	}
	return payoutKey(batch.OrderID, batch.BatchID), body, nil
}

// Publish uploads the instructions as one object
func (s *S3PayoutSink) Publish(ctx context.Context, instructions []models.PayoutInstruction) error {
	key, body, err := encodeBatch(instructions)
	if err != nil || key == "" {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload payout batch to S3: %w", err)
	}
	return nil
}

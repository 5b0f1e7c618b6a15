package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qubdrive/api/internal/domain"
)

// OtpRepo manages one-time codes.
// PK: email (lowercased), SK: purpose. One physical record per pair — a Put on
// the same key supersedes the prior code, which is what keeps "at most one
// actionable code per (email, purpose)" true.
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, o *domain.OtpRecord) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OtpRepo) Get(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "purpose", string(purpose)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var o domain.OtpRecord
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OtpRepo) Update(ctx context.Context, email string, purpose domain.OtpPurpose, updates map[string]interface{}) error {
	expr, names, values, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("email", email, "purpose", string(purpose)),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// MarkUsed consumes the record for the pair. Idempotent.
func (r *OtpRepo) MarkUsed(ctx context.Context, email string, purpose domain.OtpPurpose) error {
	return r.Update(ctx, email, purpose, map[string]interface{}{fieldIsUsed: true})
}

// IncrementAttempts atomically bumps the attempt counter and returns the new
// value. ADD is atomic on the server, so concurrent guesses each consume a
// distinct attempt.
func (r *OtpRepo) IncrementAttempts(ctx context.Context, email string, purpose domain.OtpPurpose) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("email", email, "purpose", string(purpose)),
		UpdateExpression: aws.String("ADD attempts :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes["attempts"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempts attribute missing from update response")
	}
	return strconv.Atoi(n.Value)
}

// otpSweepable reports whether a record should be removed by the cleanup
// sweep: consumed, or expired before the cutoff.
func otpSweepable(o *domain.OtpRecord, before time.Time) bool {
	return o.IsUsed || o.ExpiresAt.Before(before)
}

// DeleteExpired removes used records and records whose expiry is before the
// given cutoff. Returns the number of records deleted. DynamoDB TTL on
// purge_at is the backstop; this keeps on-demand cleanup deterministic.
// Expiry is compared on parsed timestamps after the scan — the stored
// RFC 3339 strings have variable-width fractions, so a lexicographic filter
// expression would misorder same-second values.
func (r *OtpRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return 0, err
	}
	var records []domain.OtpRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return 0, fmt.Errorf("unmarshal otp records: %w", err)
	}
	deleted := 0
	for i := range records {
		rec := &records[i]
		if !otpSweepable(rec, before) {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       compositeKey("email", rec.Email, "purpose", string(rec.Purpose)),
		})
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

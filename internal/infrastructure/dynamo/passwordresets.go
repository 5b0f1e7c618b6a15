package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qubdrive/api/internal/domain"
)

// PasswordResetRepo manages password reset flows. PK: email (lowercased).
// A Put on the same key supersedes any prior flow for that address.
type PasswordResetRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPasswordResetRepo(client *dynamodb.Client, tableName string) *PasswordResetRepo {
	return &PasswordResetRepo{client: client, tableName: tableName}
}

func (r *PasswordResetRepo) Put(ctx context.Context, f *domain.PasswordResetFlow) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal password reset flow: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PasswordResetRepo) Get(ctx context.Context, email string) (*domain.PasswordResetFlow, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("password reset flow not found: %w", domain.ErrNotFound)
	}
	var f domain.PasswordResetFlow
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Deactivate consumes the flow. Idempotent; deactivated flows never reactivate.
func (r *PasswordResetRepo) Deactivate(ctx context.Context, email string) error {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{fieldActive: false})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("email", email),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// resetFlowSweepable reports whether a flow should be removed by the cleanup
// sweep: deactivated, or expired before the cutoff.
func resetFlowSweepable(f *domain.PasswordResetFlow, before time.Time) bool {
	return !f.Active || f.ExpiresAt.Before(before)
}

// DeleteExpired removes inactive flows and flows whose expiry is before the
// cutoff. Expiry is compared on parsed timestamps after the scan, not on the
// stored strings (see OtpRepo.DeleteExpired).
func (r *PasswordResetRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return 0, err
	}
	var flows []domain.PasswordResetFlow
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &flows); err != nil {
		return 0, fmt.Errorf("unmarshal password reset flows: %w", err)
	}
	deleted := 0
	for i := range flows {
		if !resetFlowSweepable(&flows[i], before) {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey("email", flows[i].Email),
		})
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

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

// RegistrationRepo manages registration flows. PK: email (lowercased).
type RegistrationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRegistrationRepo(client *dynamodb.Client, tableName string) *RegistrationRepo {
	return &RegistrationRepo{client: client, tableName: tableName}
}

func (r *RegistrationRepo) Put(ctx context.Context, f *domain.RegistrationFlow) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal registration flow: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RegistrationRepo) Get(ctx context.Context, email string) (*domain.RegistrationFlow, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("registration flow not found: %w", domain.ErrNotFound)
	}
	var f domain.RegistrationFlow
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *RegistrationRepo) Update(ctx context.Context, email string, updates map[string]interface{}) error {
	expr, names, values, err := buildUpdateExpr(updates)
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

func (r *RegistrationRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}

// registrationSweepable reports whether a flow expired before the cutoff.
func registrationSweepable(f *domain.RegistrationFlow, before time.Time) bool {
	return f.ExpiresAt.Before(before)
}

// DeleteExpired removes flows whose expiry is before the cutoff.
// Completed flows age out the same way; the user record is the durable result.
// Expiry is compared on parsed timestamps after the scan, not on the stored
// strings (see OtpRepo.DeleteExpired).
func (r *RegistrationRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return 0, err
	}
	var flows []domain.RegistrationFlow
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &flows); err != nil {
		return 0, fmt.Errorf("unmarshal registration flows: %w", err)
	}
	deleted := 0
	for i := range flows {
		if !registrationSweepable(&flows[i], before) {
			continue
		}
		if err := r.Delete(ctx, flows[i].Email); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

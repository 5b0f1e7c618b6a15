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

// LoginAttemptRepo tracks consecutive failed logins. PK: email (lowercased).
type LoginAttemptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLoginAttemptRepo(client *dynamodb.Client, tableName string) *LoginAttemptRepo {
	return &LoginAttemptRepo{client: client, tableName: tableName}
}

func (r *LoginAttemptRepo) Get(ctx context.Context, email string) (*domain.LoginAttempt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("login attempt record not found: %w", domain.ErrNotFound)
	}
	var a domain.LoginAttempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Increment atomically bumps the failure counter and stamps the attempt time,
// returning the new count. ADD creates the row on first failure.
func (r *LoginAttemptRepo) Increment(ctx context.Context, email string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("email", email),
		UpdateExpression: aws.String("ADD #c :one SET last_attempt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#c": fieldCount,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[fieldCount].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("count attribute missing from update response")
	}
	return strconv.Atoi(n.Value)
}

// Lock sets the lockout deadline. The window is fixed from the triggering
// failure, not sliding.
func (r *LoginAttemptRepo) Lock(ctx context.Context, email string, until time.Time) error {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		fieldLockedUntil: until.UTC().Format(time.RFC3339),
	})
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

// Clear resets the record after a successful login. Idempotent.
func (r *LoginAttemptRepo) Clear(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}

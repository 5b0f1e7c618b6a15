package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qubdrive/api/internal/domain"
)

// RevokedTokenRepo is the store-backed token blacklist. PK: jti.
// Rows carry a TTL equal to the token's natural expiry, so the table never
// outgrows the set of tokens that could still validate.
type RevokedTokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRevokedTokenRepo(client *dynamodb.Client, tableName string) *RevokedTokenRepo {
	return &RevokedTokenRepo{client: client, tableName: tableName}
}

func (r *RevokedTokenRepo) Put(ctx context.Context, t *domain.RevokedToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal revoked token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// IsRevoked reports whether a jti is on the blacklist.
func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("jti", jti),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

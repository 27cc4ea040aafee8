package repository

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoTables returns the CreateTable inputs for the ledger tables, honoring
// PAYMENTS_TABLE and REFUNDS_TABLE.
func DynamoTables() []*dynamodb.CreateTableInput {
	return []*dynamodb.CreateTableInput{
		tableWithIndexes(getenvDefault("PAYMENTS_TABLE", defaultPaymentsTableName), map[string]string{
			paymentsGatewayRefIndex: "gateway_ref",
			paymentsSessionIDIndex:  "session_id",
		}),
		tableWithIndexes(getenvDefault("REFUNDS_TABLE", defaultRefundsTableName), map[string]string{
			refundsPaymentIDIndex:        "payment_id",
			refundsGatewayRefundRefIndex: "gateway_refund_ref",
		}),
	}
}

// EnsureDynamoTables creates missing ledger tables and returns the names it created.
func EnsureDynamoTables(ctx context.Context, ddb *dynamodb.Client) ([]string, error) {
	var created []string
	for _, in := range DynamoTables() {
		_, err := ddb.CreateTable(ctx, in)
		if err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return created, err
		}
		created = append(created, aws.ToString(in.TableName))
	}
	return created, nil
}

func tableWithIndexes(name string, indexes map[string]string) *dynamodb.CreateTableInput {
	attrs := []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}}
	gsis := make([]types.GlobalSecondaryIndex, 0, len(indexes))
	for index, key := range indexes {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS})
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(index),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(key), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return &dynamodb.CreateTableInput{
		TableName:              aws.String(name),
		AttributeDefinitions:   attrs,
		KeySchema:              []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	}
}

package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	defaultRefundsTableName      = "refunds"
	refundsPaymentIDIndex        = "payment_id-index"
	refundsGatewayRefundRefIndex = "gateway_refund_ref-index"
)

type refundItem struct {
	ID               string `dynamodbav:"id"`
	PaymentID        string `dynamodbav:"payment_id"`
	Gateway          string `dynamodbav:"gateway"`
	Amount           int64  `dynamodbav:"amount"`
	Currency         string `dynamodbav:"currency"`
	Reason           string `dynamodbav:"reason,omitempty"`
	GatewayRefundID  string `dynamodbav:"gateway_refund_id,omitempty"`
	GatewayRefundRef string `dynamodbav:"gateway_refund_ref,omitempty"`
	Status           string `dynamodbav:"status"`
	CreatedAt        string `dynamodbav:"created_at"`
	UpdatedAt        string `dynamodbav:"updated_at"`
}

// RefundDynamoRepository persists refunds next to the payments table.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: payment_id-index (PK: payment_id)
//   - GSI: gateway_refund_ref-index (PK: gateway_refund_ref, "<gateway>#<gateway_refund_id>")
type RefundDynamoRepository struct {
	ddb           *dynamodb.Client
	tableName     string
	paymentsTable string
}

var _ interfaces.IRefundRepository = (*RefundDynamoRepository)(nil)

func NewRefundDynamoRepository(ddb *dynamodb.Client) *RefundDynamoRepository {
	return &RefundDynamoRepository{
		ddb:           ddb,
		tableName:     getenvDefault("REFUNDS_TABLE", defaultRefundsTableName),
		paymentsTable: getenvDefault("PAYMENTS_TABLE", defaultPaymentsTableName),
	}
}

// ApplyRefundChange writes both items in one transaction.
func (r *RefundDynamoRepository) ApplyRefundChange(ctx context.Context, change entities.RefundChange) (bool, error) {
	p := change.Payment
	p.Version = change.ExpectedVersion + 1
	paymentAV, err := attributevalue.MarshalMap(toPaymentItem(p))
	if err != nil {
		return false, err
	}
	refundAV, err := attributevalue.MarshalMap(toRefundItem(change.Refund))
	if err != nil {
		return false, err
	}

	refundPut := &types.Put{
		TableName: aws.String(r.tableName),
		Item:      refundAV,
	}
	if change.CreateRefund {
		refundPut.ConditionExpression = aws.String("attribute_not_exists(#id)")
		refundPut.ExpressionAttributeNames = map[string]string{"#id": "id"}
	}

	_, err = r.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.paymentsTable),
				Item:                paymentAV,
				ConditionExpression: aws.String("attribute_exists(#id) AND version = :expected"),
				ExpressionAttributeNames: map[string]string{
					"#id": "id",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(change.ExpectedVersion, 10)},
				},
			}},
			{Put: refundPut},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return false, nil
				}
			}
		}
		return false, err
	}
	return true, nil
}

func (r *RefundDynamoRepository) GetByID(ctx context.Context, id string) (entities.Refund, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Refund{}, err
	}
	if len(out.Item) == 0 {
		return entities.Refund{}, nil
	}
	var it refundItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return entities.Refund{}, err
	}
	return fromRefundItem(it), nil
}

func (r *RefundDynamoRepository) GetByGatewayRefundID(ctx context.Context, gateway, gatewayRefundID string) (entities.Refund, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(refundsGatewayRefundRefIndex),
		KeyConditionExpression: aws.String("gateway_refund_ref = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: gatewayRef(gateway, gatewayRefundID)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return entities.Refund{}, err
	}
	if len(out.Items) == 0 {
		return entities.Refund{}, nil
	}
	var it refundItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return entities.Refund{}, err
	}
	return r.GetByID(ctx, it.ID)
}

func (r *RefundDynamoRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]entities.Refund, error) {
	paginator := dynamodb.NewQueryPaginator(r.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(refundsPaymentIDIndex),
		KeyConditionExpression: aws.String("payment_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: paymentID},
		},
	})

	items := make([]entities.Refund, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var it refundItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, err
			}
			items = append(items, fromRefundItem(it))
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func toRefundItem(rf entities.Refund) refundItem {
	it := refundItem{
		ID:              rf.ID,
		PaymentID:       rf.PaymentID,
		Gateway:         rf.Gateway,
		Amount:          rf.Amount,
		Currency:        rf.Currency,
		Reason:          rf.Reason,
		GatewayRefundID: rf.GatewayRefundID,
		Status:          string(rf.Status),
		CreatedAt:       formatTime(rf.CreatedAt),
		UpdatedAt:       formatTime(rf.UpdatedAt),
	}
	if rf.GatewayRefundID != "" {
		it.GatewayRefundRef = gatewayRef(rf.Gateway, rf.GatewayRefundID)
	}
	return it
}

func fromRefundItem(it refundItem) entities.Refund {
	return entities.Refund{
		ID:              it.ID,
		PaymentID:       it.PaymentID,
		Gateway:         it.Gateway,
		Amount:          it.Amount,
		Currency:        it.Currency,
		Reason:          it.Reason,
		GatewayRefundID: it.GatewayRefundID,
		Status:          entities.RefundStatus(it.Status),
		CreatedAt:       parseTime(it.CreatedAt),
		UpdatedAt:       parseTime(it.UpdatedAt),
	}
}

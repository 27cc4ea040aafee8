package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	defaultPaymentsTableName = "payments"
	paymentsGatewayRefIndex  = "gateway_ref-index"
	paymentsSessionIDIndex   = "session_id-index"
)

type paymentItem struct {
	ID               string            `dynamodbav:"id"`
	SessionID        string            `dynamodbav:"session_id"`
	PayerID          string            `dynamodbav:"payer_id"`
	PayeeID          string            `dynamodbav:"payee_id"`
	Amount           int64             `dynamodbav:"amount"`
	CapturedAmount   int64             `dynamodbav:"captured_amount"`
	RefundedAmount   int64             `dynamodbav:"refunded_amount"`
	RefundReserved   int64             `dynamodbav:"refund_reserved_amount"`
	Currency         string            `dynamodbav:"currency"`
	Gateway          string            `dynamodbav:"gateway"`
	GatewayPaymentID string            `dynamodbav:"gateway_payment_id,omitempty"`
	GatewayRef       string            `dynamodbav:"gateway_ref,omitempty"`
	GatewayStatus    string            `dynamodbav:"gateway_status"`
	Status           string            `dynamodbav:"status"`
	Description      string            `dynamodbav:"description,omitempty"`
	Metadata         map[string]string `dynamodbav:"metadata,omitempty"`
	Version          int64             `dynamodbav:"version"`
	CreatedAt        string            `dynamodbav:"created_at"`
	UpdatedAt        string            `dynamodbav:"updated_at"`
}

// PaymentDynamoRepository persists Payment entities in DynamoDB.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: gateway_ref-index (PK: gateway_ref, "<gateway>#<gateway_payment_id>")
//   - GSI: session_id-index (PK: session_id)
type PaymentDynamoRepository struct {
	ddb       *dynamodb.Client
	tableName string
}

var _ interfaces.IPaymentRepository = (*PaymentDynamoRepository)(nil)

func NewPaymentDynamoRepository(ddb *dynamodb.Client) *PaymentDynamoRepository {
	return &PaymentDynamoRepository{
		ddb:       ddb,
		tableName: getenvDefault("PAYMENTS_TABLE", defaultPaymentsTableName),
	}
}

func (r *PaymentDynamoRepository) Create(ctx context.Context, p entities.Payment) (entities.Payment, error) {
	av, err := attributevalue.MarshalMap(toPaymentItem(p))
	if err != nil {
		return entities.Payment{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return entities.Payment{}, ErrDuplicateRecord
		}
		return entities.Payment{}, err
	}
	return p, nil
}

func (r *PaymentDynamoRepository) GetByID(ctx context.Context, id string) (entities.Payment, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if len(out.Item) == 0 {
		return entities.Payment{}, nil
	}

	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return entities.Payment{}, err
	}
	return fromPaymentItem(it), nil
}

// GetByGatewayPaymentID resolves the index hit with a consistent read on the base table.
func (r *PaymentDynamoRepository) GetByGatewayPaymentID(ctx context.Context, gateway, externalID string) (entities.Payment, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(paymentsGatewayRefIndex),
		KeyConditionExpression: aws.String("gateway_ref = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: gatewayRef(gateway, externalID)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if len(out.Items) == 0 {
		return entities.Payment{}, nil
	}
	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return entities.Payment{}, err
	}
	return r.GetByID(ctx, it.ID)
}

func (r *PaymentDynamoRepository) ListBySessionID(ctx context.Context, sessionID string) ([]entities.Payment, error) {
	paginator := dynamodb.NewQueryPaginator(r.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(paymentsSessionIDIndex),
		KeyConditionExpression: aws.String("session_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
	})

	items := make([]entities.Payment, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var it paymentItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, err
			}
			items = append(items, fromPaymentItem(it))
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *PaymentDynamoRepository) TransitionStatus(ctx context.Context, id string, change entities.StatusChange) (entities.Payment, bool, error) {
	update := "SET #status = :to, gateway_status = :gs, updated_at = :at, version = version + :one"
	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(change.To)},
		":from": &types.AttributeValueMemberS{Value: string(change.From)},
		":gs":   &types.AttributeValueMemberS{Value: change.GatewayStatus},
		":at":   &types.AttributeValueMemberS{Value: formatTime(change.At)},
		":one":  &types.AttributeValueMemberN{Value: "1"},
	}
	if change.CapturedAmount != nil {
		update += ", captured_amount = :cap"
		values[":cap"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*change.CapturedAmount, 10)}
	}

	out, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String(update),
		ConditionExpression: aws.String("attribute_exists(#id) AND #status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#id":     "id",
			"#status": "status",
		},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return entities.Payment{}, false, nil
		}
		return entities.Payment{}, false, err
	}

	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return entities.Payment{}, true, err
	}
	return fromPaymentItem(it), true, nil
}

func toPaymentItem(p entities.Payment) paymentItem {
	it := paymentItem{
		ID:               p.ID,
		SessionID:        p.SessionID,
		PayerID:          p.PayerID,
		PayeeID:          p.PayeeID,
		Amount:           p.Amount,
		CapturedAmount:   p.CapturedAmount,
		RefundedAmount:   p.RefundedAmount,
		RefundReserved:   p.RefundReserved,
		Currency:         p.Currency,
		Gateway:          p.Gateway,
		GatewayPaymentID: p.GatewayPaymentID,
		GatewayStatus:    p.GatewayStatus,
		Status:           string(p.Status),
		Description:      p.Description,
		Metadata:         p.Metadata,
		Version:          p.Version,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
	if p.GatewayPaymentID != "" {
		it.GatewayRef = gatewayRef(p.Gateway, p.GatewayPaymentID)
	}
	return it
}

func fromPaymentItem(it paymentItem) entities.Payment {
	return entities.Payment{
		ID:               it.ID,
		SessionID:        it.SessionID,
		PayerID:          it.PayerID,
		PayeeID:          it.PayeeID,
		Amount:           it.Amount,
		CapturedAmount:   it.CapturedAmount,
		RefundedAmount:   it.RefundedAmount,
		RefundReserved:   it.RefundReserved,
		Currency:         it.Currency,
		Gateway:          it.Gateway,
		GatewayPaymentID: it.GatewayPaymentID,
		GatewayStatus:    it.GatewayStatus,
		Status:           entities.PaymentStatus(it.Status),
		Description:      it.Description,
		Metadata:         it.Metadata,
		Version:          it.Version,
		CreatedAt:        parseTime(it.CreatedAt),
		UpdatedAt:        parseTime(it.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

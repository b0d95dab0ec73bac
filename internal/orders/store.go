package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-orderlines/internal/aws"
)

// DefaultAccountIndex is the GSI (PK account_id, SK order_date) used for account queries.
const DefaultAccountIndex = "account_id-order_date-index"

const (
	// counterOrderNumber is the reserved key of the item holding the id sequences.
	counterOrderNumber = 0

	seqOrderNumber = "seq_order_number"
	seqLineItemID  = "seq_line_item_id"
)

var _ Store = (*DynamoStore)(nil)

// orderRecord is the item stored in the orders table. Line items are embedded,
// so writing the order writes, replaces and removes its items in one PutItem.
type orderRecord struct {
	OrderNumber       int64            `dynamodbav:"order_number"` // PK
	AccountID         int64            `dynamodbav:"account_id"`   // GSI PK
	OrderDate         string           `dynamodbav:"order_date"`   // GSI SK
	ShippingAddressID int64            `dynamodbav:"shipping_address_id"`
	LineItems         []lineItemRecord `dynamodbav:"line_items"`
	UpdatedAt         time.Time        `dynamodbav:"updated_at"`
}

type lineItemRecord struct {
	ID         int64   `dynamodbav:"id"`
	ProductID  int64   `dynamodbav:"product_id"`
	Quantity   int     `dynamodbav:"quantity"`
	Price      float64 `dynamodbav:"price"`
	ShipmentID int64   `dynamodbav:"shipment_id,omitempty"`
}

// DynamoStore encapsulates operations on the orders table.
type DynamoStore struct {
	client       aws.DynamoDBAPI
	tableName    string
	accountIndex string
	nowFunc      func() time.Time
}

// NewDynamoStore creates a new orders store. An empty accountIndex selects DefaultAccountIndex.
func NewDynamoStore(client aws.DynamoDBAPI, tableName, accountIndex string) *DynamoStore {
	if accountIndex == "" {
		accountIndex = DefaultAccountIndex
	}
	return &DynamoStore{
		client:       client,
		tableName:    tableName,
		accountIndex: accountIndex,
		nowFunc:      time.Now,
	}
}

// FindAll scans the table, skipping the sequence item, ordered by order number.
func (s *DynamoStore) FindAll(ctx context.Context) ([]Order, error) {
	input := &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("order_number <> :counter"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":counter": numberAttr(counterOrderNumber),
		},
	}

	out := []Order{}
	p := dyn.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		decoded, err := decodeOrders(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

// FindByOrderNumber fetches an order. Returns (nil, nil) if not found.
func (s *DynamoStore) FindByOrderNumber(ctx context.Context, orderNumber int64) (*Order, error) {
	if orderNumber == counterOrderNumber {
		return nil, nil
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderNumber),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o, err := rec.toOrder()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindAllByAccountID queries the account index, sorted by order date.
func (s *DynamoStore) FindAllByAccountID(ctx context.Context, accountID int64, ascending bool) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.accountIndex,
		KeyConditionExpression: awsString("account_id = :acct"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":acct": numberAttr(accountID),
		},
		ScanIndexForward: awsBool(ascending),
	}

	out := []Order{}
	p := dyn.NewQueryPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query orders by account: %w", err)
		}
		decoded, err := decodeOrders(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// FindLineItemsByOrderNumber returns the persisted line items of an order, empty if the order does not exist.
func (s *DynamoStore) FindLineItemsByOrderNumber(ctx context.Context, orderNumber int64) ([]OrderLineItem, error) {
	o, err := s.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o == nil || o.LineItems == nil {
		return []OrderLineItem{}, nil
	}
	return o.LineItems, nil
}

// Save writes the order and its line items, assigning identities first.
func (s *DynamoStore) Save(ctx context.Context, o *Order) error {
	isNew := o.OrderNumber == 0
	if isNew {
		n, err := s.nextIDs(ctx, seqOrderNumber, 1)
		if err != nil {
			return err
		}
		o.OrderNumber = n
	}

	missing := 0
	for _, li := range o.LineItems {
		if li.ID == 0 {
			missing++
		}
	}
	if missing > 0 {
		next, err := s.nextIDs(ctx, seqLineItemID, missing)
		if err != nil {
			return err
		}
		for i := range o.LineItems {
			if o.LineItems[i].ID == 0 {
				o.LineItems[i].ID = next
				next++
			}
		}
	}

	item, err := attributevalue.MarshalMap(newOrderRecord(*o, s.nowFunc()))
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if isNew {
		input.ConditionExpression = awsString("attribute_not_exists(order_number)")
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("order number %d already taken: %w", o.OrderNumber, err)
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Delete removes the order; its embedded line items go with it.
func (s *DynamoStore) Delete(ctx context.Context, o Order) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       orderKey(o.OrderNumber),
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// nextIDs reserves n consecutive ids from a sequence and returns the first one.
func (s *DynamoStore) nextIDs(ctx context.Context, seq string, n int) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(counterOrderNumber),
		UpdateExpression:          awsString("ADD #c :n"),
		ExpressionAttributeNames:  map[string]string{"#c": seq},
		ExpressionAttributeValues: map[string]types.AttributeValue{":n": numberAttr(int64(n))},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", seq, err)
	}
	var last int64
	if err := attributevalue.Unmarshal(out.Attributes[seq], &last); err != nil {
		return 0, fmt.Errorf("unmarshal %s: %w", seq, err)
	}
	return last - int64(n) + 1, nil
}

func newOrderRecord(o Order, now time.Time) orderRecord {
	items := make([]lineItemRecord, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, lineItemRecord{
			ID:         li.ID,
			ProductID:  li.ProductID,
			Quantity:   li.Quantity,
			Price:      li.Price,
			ShipmentID: li.ShipmentID,
		})
	}
	return orderRecord{
		OrderNumber:       o.OrderNumber,
		AccountID:         o.AccountID,
		OrderDate:         FormatStorageDate(o.OrderDate),
		ShippingAddressID: o.ShippingAddressID,
		LineItems:         items,
		UpdatedAt:         now,
	}
}

func (r orderRecord) toOrder() (Order, error) {
	date, err := ParseStorageDate(r.OrderDate)
	if err != nil {
		return Order{}, fmt.Errorf("order %d: parse order_date: %w", r.OrderNumber, err)
	}
	items := make([]OrderLineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		items = append(items, OrderLineItem(li))
	}
	return Order{
		OrderNumber:       r.OrderNumber,
		AccountID:         r.AccountID,
		OrderDate:         date,
		ShippingAddressID: r.ShippingAddressID,
		LineItems:         items,
	}, nil
}

func decodeOrders(items []map[string]types.AttributeValue) ([]Order, error) {
	var recs []orderRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	out := make([]Order, 0, len(recs))
	for _, r := range recs {
		o, err := r.toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func orderKey(orderNumber int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"order_number": numberAttr(orderNumber)}
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

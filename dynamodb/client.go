package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/slackmgr/projectindex/store"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "pk"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "sk"

	// BodyAttr is the attribute name used to store the JSON-encoded body of a record.
	BodyAttr = "body"

	// VersionAttr is the numeric optimistic concurrency token of a record.
	VersionAttr = "version"

	// UpdatedAtAttr holds the RFC 3339 time of the last write to a record.
	UpdatedAtAttr = "updated_at"

	// maxBatchWriteItems is the BatchWriteItem request limit.
	maxBatchWriteItems = 25

	// maxTransactItems is the TransactWriteItems request limit.
	maxTransactItems = 100

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Client is a DynamoDB-backed implementation of [store.Store]. All records
// live in a single table keyed by pk and sk.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

var _ store.Store = (*Client)(nil)

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	if c.tableName == "" {
		return errors.New("table name cannot be empty")
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		if c.awsCfg == nil {
			return errors.New("AWS config cannot be nil")
		}

		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// is active, and has the partition key (pk) and sort key (sk) as its
// composite primary key.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil || len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String("#pk, #sk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": PartitionKey,
			"#sk": SortKey,
		},
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		requests := make([]dynamodbtypes.WriteRequest, 0, len(output.Items))

		for _, item := range output.Items {
			requests = append(requests, dynamodbtypes.WriteRequest{
				DeleteRequest: &dynamodbtypes.DeleteRequest{
					Key: map[string]dynamodbtypes.AttributeValue{
						PartitionKey: item[PartitionKey],
						SortKey:      item[SortKey],
					},
				},
			})
		}

		if err := c.batchWrite(ctx, requests); err != nil {
			return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

// Put writes rec with an UpdateItem call that increments the version
// attribute, optionally guarded by the expected version.
func (c *Client) Put(ctx context.Context, rec *store.Record, expectedVersion *int64) (int64, error) {
	if rec == nil {
		return 0, errors.New("record cannot be nil")
	}

	if err := validateKey(rec.PartitionKey, rec.SortKey); err != nil {
		return 0, err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:        &c.tableName,
		Key:              itemKey(rec.PartitionKey, rec.SortKey),
		UpdateExpression: aws.String("SET #body = :body, #updated = :updated ADD #version :one"),
		ExpressionAttributeNames: map[string]string{
			"#body":    BodyAttr,
			"#updated": UpdatedAtAttr,
			"#version": VersionAttr,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":body":    &dynamodbtypes.AttributeValueMemberS{Value: string(rec.Body)},
			":updated": &dynamodbtypes.AttributeValueMemberS{Value: c.now()},
			":one":     &dynamodbtypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: dynamodbtypes.ReturnValueUpdatedNew,
	}

	if expectedVersion != nil {
		if *expectedVersion == 0 {
			input.ConditionExpression = aws.String("attribute_not_exists(#pk)")
			input.ExpressionAttributeNames["#pk"] = PartitionKey
		} else {
			input.ConditionExpression = aws.String("#version = :expected")
			input.ExpressionAttributeValues[":expected"] = numberValue(*expectedVersion)
		}
	}

	output, err := c.client.UpdateItem(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("failed to write record to DynamoDB table %s: %w", c.tableName, mapError(err))
	}

	version, err := numberAttr(output.Attributes[VersionAttr])
	if err != nil {
		return 0, fmt.Errorf("invalid version returned by DynamoDB table %s: %w", c.tableName, err)
	}

	return version, nil
}

// Get reads one record with GetItem.
func (c *Client) Get(ctx context.Context, partitionKey, sortKey string) (*store.Record, error) {
	if err := validateKey(partitionKey, sortKey); err != nil {
		return nil, err
	}

	input := &dynamodb.GetItemInput{
		TableName:      &c.tableName,
		Key:            itemKey(partitionKey, sortKey),
		ConsistentRead: aws.Bool(c.opts.consistentReads),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get record from DynamoDB table %s: %w", c.tableName, mapError(err))
	}

	if len(output.Item) == 0 {
		return nil, store.ErrNotFound
	}

	return decodeItem(output.Item)
}

// Query reads one page of a partition. The key condition narrows the read on
// the server; records that do not strictly satisfy the operator (the prefix
// record itself, for GreaterThan) are dropped here. One record beyond the
// page size is read so that the final page carries no cursor.
func (c *Client) Query(ctx context.Context, q store.Query) (*store.Page, error) {
	if q.PartitionKey == "" {
		return nil, errors.New("partition key cannot be empty")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.opts.defaultPageSize
	}

	input := &dynamodb.QueryInput{
		TableName:      &c.tableName,
		ConsistentRead: aws.Bool(c.opts.consistentReads),
		Limit:          aws.Int32(int32(min(limit+1, 10000))), //nolint:gosec // Bounded above.
		ExpressionAttributeNames: map[string]string{
			"#pk": PartitionKey,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": &dynamodbtypes.AttributeValueMemberS{Value: q.PartitionKey},
		},
	}

	keyCondition := "#pk = :pk"

	switch {
	case q.Operator == store.Equal:
		keyCondition += " AND #sk = :sk"
	case q.Operator == store.GreaterThan && q.SortKey != "":
		keyCondition += " AND begins_with(#sk, :sk)"
	case q.Operator == store.LessThan:
		keyCondition += " AND #sk < :sk"
	}

	if keyCondition != "#pk = :pk" {
		input.ExpressionAttributeNames["#sk"] = SortKey
		input.ExpressionAttributeValues[":sk"] = &dynamodbtypes.AttributeValueMemberS{Value: q.SortKey}
	}

	input.KeyConditionExpression = aws.String(keyCondition)

	after, ok, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	if ok {
		input.ExclusiveStartKey = itemKey(q.PartitionKey, after)
	}

	var records []*store.Record

	for {
		output, err := c.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, mapError(err))
		}

		for _, item := range output.Items {
			rec, err := decodeItem(item)
			if err != nil {
				return nil, err
			}

			if !q.Matches(rec.SortKey) {
				continue
			}

			records = append(records, rec)
		}

		if len(records) > limit || output.LastEvaluatedKey == nil {
			break
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.Join(store.ErrUnavailable, err)
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	page := &store.Page{Records: records}

	if len(records) > limit {
		page.Records = records[:limit]
		page.Cursor = store.EncodeCursor(page.Records[limit-1].SortKey)
	}

	return page, nil
}

// BatchSubmit writes ops as one request. Batches of up to 100 operations are
// sent with TransactWriteItems and are atomic. Larger batches are chunked
// into BatchWriteItem calls of 25 and are not atomic; they may not carry
// must-not-exist conditions.
func (c *Client) BatchSubmit(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}

	for _, op := range ops {
		if err := validateKey(op.Record.PartitionKey, op.Record.SortKey); err != nil {
			return err
		}
	}

	if len(ops) <= maxTransactItems {
		return c.transactWrite(ctx, ops)
	}

	requests := make([]dynamodbtypes.WriteRequest, 0, len(ops))

	for _, op := range ops {
		if op.MustNotExist {
			return fmt.Errorf("batch of %d operations exceeds the transaction limit of %d and cannot carry must-not-exist conditions", len(ops), maxTransactItems)
		}

		if op.Kind == store.OpDelete {
			requests = append(requests, dynamodbtypes.WriteRequest{
				DeleteRequest: &dynamodbtypes.DeleteRequest{Key: itemKey(op.Record.PartitionKey, op.Record.SortKey)},
			})
			continue
		}

		requests = append(requests, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{Item: c.encodeItem(&op.Record)},
		})
	}

	if err := c.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("failed to batch write records to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// Delete removes one record with DeleteItem.
func (c *Client) Delete(ctx context.Context, partitionKey, sortKey string) error {
	if err := validateKey(partitionKey, sortKey); err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key:       itemKey(partitionKey, sortKey),
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete record from DynamoDB table %s: %w", c.tableName, mapError(err))
	}

	return nil
}

func (c *Client) transactWrite(ctx context.Context, ops []store.Op) error {
	items := make([]dynamodbtypes.TransactWriteItem, 0, len(ops))

	for _, op := range ops {
		if op.Kind == store.OpDelete {
			items = append(items, dynamodbtypes.TransactWriteItem{
				Delete: &dynamodbtypes.Delete{
					TableName: &c.tableName,
					Key:       itemKey(op.Record.PartitionKey, op.Record.SortKey),
				},
			})
			continue
		}

		put := &dynamodbtypes.Put{
			TableName: &c.tableName,
			Item:      c.encodeItem(&op.Record),
		}

		if op.MustNotExist {
			put.ConditionExpression = aws.String("attribute_not_exists(pk)")
		}

		items = append(items, dynamodbtypes.TransactWriteItem{Put: put})
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}

	if _, err := c.client.TransactWriteItems(ctx, input); err != nil {
		return fmt.Errorf("failed to write transaction to DynamoDB table %s: %w", c.tableName, mapError(err))
	}

	return nil
}

// batchWrite sends requests in chunks of 25, retrying unprocessed items with
// exponential backoff.
func (c *Client) batchWrite(ctx context.Context, requests []dynamodbtypes.WriteRequest) error {
	for i := 0; i < len(requests); i += maxBatchWriteItems {
		end := min(i+maxBatchWriteItems, len(requests))

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dynamodbtypes.WriteRequest{
				c.tableName: requests[i:end],
			},
		}

		// Retry with exponential backoff for unprocessed items.
		const maxRetries = 5
		backoff := 50 * time.Millisecond

		for attempt := 0; attempt <= maxRetries; attempt++ {
			batchResult, err := c.client.BatchWriteItem(ctx, input)
			if err != nil {
				return mapError(err)
			}

			if len(batchResult.UnprocessedItems) == 0 {
				break
			}

			if attempt == maxRetries {
				return fmt.Errorf("%w: %d unprocessed items after %d retries", store.ErrUnavailable, len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
			}

			// Wait before retrying unprocessed items.
			select {
			case <-ctx.Done():
				return errors.Join(store.ErrUnavailable, ctx.Err())
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, maxBackoff)
			input.RequestItems = batchResult.UnprocessedItems
		}
	}

	return nil
}

func (c *Client) encodeItem(rec *store.Record) map[string]dynamodbtypes.AttributeValue {
	item := itemKey(rec.PartitionKey, rec.SortKey)
	item[BodyAttr] = &dynamodbtypes.AttributeValueMemberS{Value: string(rec.Body)}
	item[VersionAttr] = numberValue(rec.Version + 1)
	item[UpdatedAtAttr] = &dynamodbtypes.AttributeValueMemberS{Value: c.now()}

	return item
}

func (c *Client) now() string {
	return c.opts.clock().UTC().Format(time.RFC3339Nano)
}

func decodeItem(item map[string]dynamodbtypes.AttributeValue) (*store.Record, error) {
	version, err := numberAttr(item[VersionAttr])
	if err != nil {
		return nil, fmt.Errorf("invalid version attribute: %w", err)
	}

	rec := &store.Record{
		PartitionKey: getStringValue(item[PartitionKey]),
		SortKey:      getStringValue(item[SortKey]),
		Version:      version,
	}

	if body := getStringValue(item[BodyAttr]); body != "" {
		rec.Body = []byte(body)
	}

	return rec, nil
}

func itemKey(partitionKey, sortKey string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sortKey},
	}
}

func numberValue(n int64) *dynamodbtypes.AttributeValueMemberN {
	return &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// numberAttr returns zero for a missing attribute.
func numberAttr(attr dynamodbtypes.AttributeValue) (int64, error) {
	if attr == nil {
		return 0, nil
	}

	n, ok := attr.(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("expected number attribute, got %T", attr)
	}

	return strconv.ParseInt(n.Value, 10, 64)
}

func validateKey(partitionKey, sortKey string) error {
	if partitionKey == "" {
		return errors.New("partition key cannot be empty")
	}

	if sortKey == "" {
		return errors.New("sort key cannot be empty")
	}

	return nil
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}

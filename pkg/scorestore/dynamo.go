package scorestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	dynamodb.QueryAPIClient
}

// DynamoStore implements Store on a DynamoDB table keyed by
// player_name (partition) and session_hole (sort).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore returns a store on table using client.
func NewDynamoStore(client DynamoAPI, table string) (*DynamoStore, error) {
	if client == nil {
		return nil, errors.New("scorestore: dynamodb client is required")
	}
	if table == "" {
		return nil, errors.New("scorestore: table name is required")
	}
	return &DynamoStore{client: client, table: table}, nil
}

// ParseTableARN splits arn:aws:dynamodb:<region>:<account>:table/<name>.
// A bare table name is returned unchanged with an empty region.
func ParseTableARN(arn string) (region, table string, err error) {
	if !strings.HasPrefix(arn, "arn:") {
		if arn == "" {
			return "", "", errors.New("scorestore: empty table")
		}
		return "", arn, nil
	}
	parts := strings.Split(arn, ":")
	if len(parts) < 6 || parts[2] != "dynamodb" || !strings.HasPrefix(parts[5], "table/") {
		return "", "", fmt.Errorf("scorestore: invalid DynamoDB table ARN format: %s", arn)
	}
	name := strings.TrimPrefix(parts[5], "table/")
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", "", fmt.Errorf("scorestore: invalid DynamoDB table ARN format: %s", arn)
	}
	return parts[3], name, nil
}

func (s *DynamoStore) keyAttrs(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"player_name":  &types.AttributeValueMemberS{Value: key.Player},
		"session_hole": &types.AttributeValueMemberS{Value: key.SessionHole},
	}
}

// Put writes a record.
func (s *DynamoStore) Put(ctx context.Context, rec Record) error {
	if err := rec.Key().Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get returns the record for key.
func (s *DynamoStore) Get(ctx context.Context, key Key) (Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttrs(key),
	})
	if err != nil {
		return Record{}, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// Update applies a partial update with a SET expression. The item must exist.
func (s *DynamoStore) Update(ctx context.Context, key Key, u Update) error {
	if u.IsEmpty() {
		_, err := s.Get(ctx, key)
		return err
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets []string
	set := func(attr string, av types.AttributeValue) {
		n := "#" + attr
		v := ":" + attr
		names[n] = attr
		values[v] = av
		sets = append(sets, n+" = "+v)
	}
	str := func(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }
	num := func(n int) types.AttributeValue { return &types.AttributeValueMemberN{Value: fmt.Sprint(n)} }

	if u.RoundStatus != nil {
		set("round_status", str(*u.RoundStatus))
	}
	if u.RoundEndTime != nil {
		set("round_end_time", str(*u.RoundEndTime))
	}
	if u.LastActivity != nil {
		set("last_activity", str(*u.LastActivity))
	}
	if u.HolesCompleted != nil {
		set("holes_completed", num(*u.HolesCompleted))
	}
	if u.TotalStrokes != nil {
		set("total_strokes", num(*u.TotalStrokes))
	}
	if u.TotalPar != nil {
		set("total_par", num(*u.TotalPar))
	}
	names["#pk"] = "player_name"
	sort.Strings(sets)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.keyAttrs(key),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Query returns the player's records under prefix, following pagination.
func (s *DynamoStore) Query(ctx context.Context, player, prefix string) ([]Record, error) {
	values := map[string]types.AttributeValue{
		":p": &types.AttributeValueMemberS{Value: player},
	}
	cond := "player_name = :p"
	if prefix != "" {
		cond += " AND begins_with(session_hole, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String(cond),
		ExpressionAttributeValues: values,
	})

	var out []Record
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query page: %w", err)
		}
		var recs []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Close is a no-op; the SDK client holds no per-store resources.
func (s *DynamoStore) Close() error { return nil }

var _ Store = (*DynamoStore)(nil)

package scorestore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo is an in-memory table that understands the expressions
// DynamoStore emits. Query returns pageSize items per page.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[Key]map[string]types.AttributeValue
	pageSize int
	queries  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[Key]map[string]types.AttributeValue{}, pageSize: 2}
}

func attrS(m map[string]types.AttributeValue, name string) string {
	if v, ok := m[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(m map[string]types.AttributeValue) Key {
	return Key{Player: attrS(m, "player_name"), SessionHole: attrS(m, "session_hole")}
}

func copyItem(m map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(in.Item)] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := itemKey(in.Key)
	item, ok := f.items[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		attr := in.ExpressionAttributeNames[parts[0]]
		item[attr] = in.ExpressionAttributeValues[parts[1]]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	player := attrS(in.ExpressionAttributeValues, ":p")
	prefix := attrS(in.ExpressionAttributeValues, ":prefix")
	start := ""
	if in.ExclusiveStartKey != nil {
		start = attrS(in.ExclusiveStartKey, "session_hole")
	}

	var keys []Key
	for k := range f.items {
		if k.Player == player && strings.HasPrefix(k.SessionHole, prefix) && k.SessionHole > start {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].SessionHole < keys[j].SessionHole })

	out := &dynamodb.QueryOutput{}
	for i, k := range keys {
		if i == f.pageSize {
			last := keys[i-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				"player_name":  &types.AttributeValueMemberS{Value: last.Player},
				"session_hole": &types.AttributeValueMemberS{Value: last.SessionHole},
			}
			break
		}
		out.Items = append(out.Items, copyItem(f.items[k]))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	fake := newFakeDynamo()
	s, err := NewDynamoStore(fake, "golf-scores")
	require.NoError(t, err)
	storeContract(t, s)
	assert.Greater(t, fake.queries, 4, "queries should page")
}

func TestDynamoStoreRequiresClientAndTable(t *testing.T) {
	_, err := NewDynamoStore(nil, "t")
	assert.Error(t, err)
	_, err = NewDynamoStore(newFakeDynamo(), "")
	assert.Error(t, err)
}

func TestDynamoStoreMarshalsNumbers(t *testing.T) {
	fake := newFakeDynamo()
	s, err := NewDynamoStore(fake, "golf-scores")
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), Record{
		PlayerName:  "Ben",
		SessionHole: "s#hole_03",
		SessionID:   "s",
		HoleNumber:  3,
		Strokes:     4,
		Par:         4,
		TTL:         42,
	}))
	item := fake.items[Key{Player: "Ben", SessionHole: "s#hole_03"}]
	n, ok := item["strokes"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "4", n.Value)
	ttl, ok := item["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "42", ttl.Value)
	_, hasEnd := item["round_end_time"]
	assert.False(t, hasEnd, "empty strings are omitted")
}

func TestParseTableARN(t *testing.T) {
	tests := []struct {
		in      string
		region  string
		table   string
		wantErr bool
	}{
		{"arn:aws:dynamodb:us-east-1:123456789012:table/golf-scores", "us-east-1", "golf-scores", false},
		{"arn:aws:dynamodb:eu-west-2:123456789012:table/golf-scores/stream/2026", "eu-west-2", "golf-scores", false},
		{"golf-scores", "", "golf-scores", false},
		{"arn:aws:s3:::bucket", "", "", true},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		region, table, err := ParseTableARN(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.region, region, tt.in)
		assert.Equal(t, tt.table, table, tt.in)
	}
}

package sequence

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo evaluates the one update expression Dynamo issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]int64
	fail  error
	exprs []string
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.exprs = append(f.exprs, aws.ToString(in.UpdateExpression))

	name := in.Key["name"].(*types.AttributeValueMemberS).Value
	seed, _ := strconv.ParseInt(in.ExpressionAttributeValues[":seed"].(*types.AttributeValueMemberN).Value, 10, 64)
	one, _ := strconv.ParseInt(in.ExpressionAttributeValues[":one"].(*types.AttributeValueMemberN).Value, 10, 64)

	v, ok := f.items[name]
	if !ok {
		v = seed
	}
	v += one
	f.items[name] = v
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"seq": &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)},
	}}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	name := in.Key["name"].(*types.AttributeValueMemberS).Value
	v, ok := f.items[name]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: name},
		"seq":  &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)},
	}}, nil
}

func TestDynamoSingleUpdatePerNext(t *testing.T) {
	ctx := context.Background()
	api := &fakeDynamo{items: map[string]int64{}}
	c := NewDynamo(api, "sequences", 100)

	v, err := c.Next(ctx, "user_sequence")
	if err != nil || v != 101 {
		t.Fatalf("first Next: v=%d err=%v", v, err)
	}
	v, err = c.Next(ctx, "user_sequence")
	if err != nil || v != 102 {
		t.Fatalf("second Next: v=%d err=%v", v, err)
	}
	if len(api.exprs) != 2 {
		t.Fatalf("expected exactly one UpdateItem per Next, got %d", len(api.exprs))
	}
	if api.exprs[0] != "SET #seq = if_not_exists(#seq, :seed) + :one" {
		t.Fatalf("unexpected update expression %q", api.exprs[0])
	}
	if cur, err := c.Current(ctx, "user_sequence"); err != nil || cur != 102 {
		t.Fatalf("Current: %d err=%v", cur, err)
	}
	if cur, err := c.Current(ctx, "nope"); err != nil || cur != 0 {
		t.Fatalf("Current(nope): %d err=%v", cur, err)
	}
}

func TestDynamoConcurrentUnique(t *testing.T) {
	assertUniqueRange(t, NewDynamo(&fakeDynamo{items: map[string]int64{}}, "sequences", 100), "user_sequence", 100, 300)
}

func TestDynamoFailureIsUnavailable(t *testing.T) {
	boom := errors.New("throttled")
	c := NewDynamo(&fakeDynamo{items: map[string]int64{}, fail: boom}, "sequences", 100)
	_, err := c.Next(context.Background(), "user_sequence")
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrUnavailable wrapping cause, got %v", err)
	}
}

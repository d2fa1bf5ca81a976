package sequence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client used by Dynamo.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Dynamo keeps one item per counter in a table keyed by the string attribute "name".
type Dynamo struct {
	api   DynamoAPI
	table string
	seed  int64
}

var _ Counter = (*Dynamo)(nil)

func NewDynamo(api DynamoAPI, table string, seed int64) *Dynamo {
	return &Dynamo{api: api, table: table, seed: seed}
}

func (s *Dynamo) key(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: name}}
}

func (s *Dynamo) Next(ctx context.Context, name string) (int64, error) {
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.key(name),
		UpdateExpression: aws.String("SET #seq = if_not_exists(#seq, :seed) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#seq": "seq",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":seed": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.seed, 10)},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fail(name, "next", err)
	}
	v, err := seqAttr(out.Attributes)
	if err != nil {
		return 0, fail(name, "next", err)
	}
	return v, nil
}

func (s *Dynamo) Current(ctx context.Context, name string) (int64, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fail(name, "current", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}
	v, err := seqAttr(out.Item)
	if err != nil {
		return 0, fail(name, "current", err)
	}
	return v, nil
}

func (s *Dynamo) Close(context.Context) error { return nil }

func seqAttr(item map[string]types.AttributeValue) (int64, error) {
	av, ok := item["seq"]
	if !ok {
		return 0, fmt.Errorf("missing seq attribute")
	}
	var v int64
	if err := attributevalue.Unmarshal(av, &v); err != nil {
		return 0, err
	}
	return v, nil
}

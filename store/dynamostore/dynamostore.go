// Package dynamostore keeps records in a DynamoDB table keyed by the numeric
// attribute "id".
package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	rc "github.com/unkn0wn-root/recordcache"
)

// API is the subset of *dynamodb.Client used by Store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Store struct {
	api   API
	table string
}

var _ rc.RecordStore = (*Store)(nil)

func New(api API, table string) (*Store, error) {
	if api == nil || table == "" {
		return nil, errors.New("dynamostore: api and table are required")
	}
	return &Store{api: api, table: table}, nil
}

func key(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)}}
}

func (s *Store) FindByID(ctx context.Context, id int64) (rc.User, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return rc.User{}, false, rc.NewStoreError("find", err)
	}
	if len(out.Item) == 0 {
		return rc.User{}, false, nil
	}
	var u rc.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return rc.User{}, false, rc.NewStoreError("find", err)
	}
	return u, true, nil
}

// FindAll scans the whole table page by page and sorts by id; Scan order is
// undefined.
func (s *Store) FindAll(ctx context.Context) ([]rc.User, error) {
	users := make([]rc.User, 0)
	var start map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: start,
			ConsistentRead:    aws.Bool(true),
		})
		if err != nil {
			return nil, rc.NewStoreError("find all", err)
		}
		var page []rc.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, rc.NewStoreError("find all", err)
		}
		users = append(users, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) Save(ctx context.Context, u rc.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return rc.NewStoreError("save", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return rc.NewStoreError("save", err)
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key(id),
	})
	return rc.NewStoreError("delete", err)
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.table),
		Key:                  key(id),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("id"),
	})
	if err != nil {
		return false, rc.NewStoreError("exists", err)
	}
	return len(out.Item) > 0, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var (
		n     int64
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			Select:            types.SelectCount,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return 0, rc.NewStoreError("count", err)
		}
		n += int64(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return n, nil
		}
		start = out.LastEvaluatedKey
	}
}

package dynamodb

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDDBClient is an in-memory table that understands the key conditions
// and update expressions the backend emits.
type mockDDBClient struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue // pk -> sk -> item
	pageSize int
	queries  int
	updates  int
	failOn   string
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items:    make(map[string]map[string]map[string]types.AttributeValue),
		pageSize: 2,
	}
}

func (m *mockDDBClient) Query(_ context.Context, params *ddb.QueryInput, _ ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	pk := params.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	lo, hi := "", "\xff"
	if v, ok := params.ExpressionAttributeValues[":lo"]; ok {
		lo = v.(*types.AttributeValueMemberS).Value
		hi = params.ExpressionAttributeValues[":hi"].(*types.AttributeValueMemberS).Value
	}
	after := ""
	if params.ExclusiveStartKey != nil {
		after = params.ExclusiveStartKey[attrSK].(*types.AttributeValueMemberS).Value
	}

	rows := m.items[pk]
	var sks []string
	for sk := range rows {
		if sk >= lo && sk <= hi && (after == "" || sk > after) {
			sks = append(sks, sk)
		}
	}
	slices.Sort(sks)

	out := &ddb.QueryOutput{}
	if len(sks) > m.pageSize {
		sks = sks[:m.pageSize]
		last := sks[len(sks)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: pk},
			attrSK: &types.AttributeValueMemberS{Value: last},
		}
	}
	for _, sk := range sks {
		out.Items = append(out.Items, maps.Clone(rows[sk]))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (m *mockDDBClient) UpdateItem(_ context.Context, params *ddb.UpdateItemInput, _ ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++

	pk := params.Key[attrPK].(*types.AttributeValueMemberS).Value
	sk := params.Key[attrSK].(*types.AttributeValueMemberS).Value
	if m.failOn != "" && strings.HasPrefix(sk, m.failOn) {
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}

	rows := m.items[pk]
	if rows == nil {
		rows = make(map[string]map[string]types.AttributeValue)
		m.items[pk] = rows
	}
	item := rows[sk]
	if item == nil {
		item = maps.Clone(params.Key)
	}

	mode := ""
	fields := strings.Fields(strings.ReplaceAll(aws.ToString(params.UpdateExpression), ",", " "))
	for i := 0; i < len(fields); i++ {
		switch tok := fields[i]; tok {
		case "SET", "REMOVE":
			mode = tok
		default:
			name, ok := params.ExpressionAttributeNames[tok]
			if !ok {
				return nil, errors.New("unknown attribute name " + tok)
			}
			if mode == "REMOVE" {
				delete(item, name)
				continue
			}
			if i+2 >= len(fields) || fields[i+1] != "=" {
				return nil, errors.New("malformed SET clause")
			}
			item[name] = params.ExpressionAttributeValues[fields[i+2]]
			i += 2
		}
	}
	rows[sk] = item

	out := &ddb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = maps.Clone(item)
	}
	return out, nil
}

func (m *mockDDBClient) DeleteItem(_ context.Context, params *ddb.DeleteItemInput, _ ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pk := params.Key[attrPK].(*types.AttributeValueMemberS).Value
	sk := params.Key[attrSK].(*types.AttributeValueMemberS).Value
	delete(m.items[pk], sk)
	return &ddb.DeleteItemOutput{}, nil
}

func (m *mockDDBClient) count(pk string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items[pk])
}

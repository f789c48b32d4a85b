// Package dynamotest provides an in-memory DynamoDB fake for store tests.
// It understands only the expression forms the stores in this module emit.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Fake stores items per table: table -> pk -> item.
type Fake struct {
	mu     sync.Mutex
	Tables map[string]map[string]map[string]types.AttributeValue
	// PageSize bounds Scan pages when > 0.
	PageSize int
	// Err, when set, is returned by every call.
	Err error

	ScanCalls int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{Tables: map[string]map[string]map[string]types.AttributeValue{}}
}

var keyAttrs = []string{"id", "idempotency_key"}

func (f *Fake) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.Tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		f.Tables[name] = t
	}
	return t
}

func pkOf(m map[string]types.AttributeValue) (string, string, error) {
	for _, k := range keyAttrs {
		if v, ok := m[k].(*types.AttributeValueMemberS); ok {
			return k, v.Value, nil
		}
	}
	return "", "", errors.New("no primary key attribute")
}

// Seed stores item directly.
func (f *Fake) Seed(table string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, pk, err := pkOf(item)
	if err != nil {
		panic(err)
	}
	f.table(table)[pk] = item
}

// Item returns the stored item or nil.
func (f *Fake) Item(table, pk string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table(table)[pk]
}

func (f *Fake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	keyName, pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	t := f.table(*params.TableName)
	if params.ConditionExpression != nil {
		ok, err := holds(t[pk], keyName, *params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("conditional check failed")}
		}
	}
	t[pk] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	_, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := f.table(*params.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	keyName, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	t := f.table(*params.TableName)
	item, exists := t[pk]
	if params.ConditionExpression != nil && *params.ConditionExpression == fmt.Sprintf("attribute_exists(%s)", keyName) && !exists {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("conditional check failed")}
	}
	if !exists {
		item = copyItem(params.Key)
	}
	old := copyItem(item)
	if params.UpdateExpression == nil || !strings.HasPrefix(*params.UpdateExpression, "SET ") {
		return nil, fmt.Errorf("unsupported update expression")
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(*params.UpdateExpression, "SET "), ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad assignment %q", assignment)
		}
		name := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
		v, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("missing value for %q", parts[1])
		}
		item[name] = v
	}
	t[pk] = item

	out := &dyn.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew, types.ReturnValueUpdatedNew:
		out.Attributes = copyItem(item)
	case types.ReturnValueAllOld:
		out.Attributes = old
	}
	return out, nil
}

func (f *Fake) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	_, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	t := f.table(*params.TableName)
	old, ok := t[pk]
	delete(t, pk)
	out := &dyn.DeleteItemOutput{}
	if ok && params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *Fake) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScanCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	t := f.table(*params.TableName)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		_, after, err := pkOf(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	out := &dyn.ScanOutput{}
	for i := start; i < len(keys); i++ {
		if f.PageSize > 0 && i-start == f.PageSize {
			keyName, _, _ := pkOf(t[keys[i-1]])
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				keyName: &types.AttributeValueMemberS{Value: keys[i-1]},
			}
			break
		}
		item := t[keys[i]]
		if params.FilterExpression != nil {
			ok, err := matches(item, *params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// holds evaluates a put condition: "a OR b" where each side is
// attribute_exists/attribute_not_exists on the key or a comparison clause.
// Comparisons are false for a missing item.
func holds(item map[string]types.AttributeValue, keyName, expr string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, part := range strings.Split(expr, " OR ") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "(") {
			part = strings.TrimSuffix(part[1:], ")")
		}
		var ok bool
		switch part {
		case fmt.Sprintf("attribute_not_exists(%s)", keyName):
			ok = item == nil
		case fmt.Sprintf("attribute_exists(%s)", keyName):
			ok = item != nil
		default:
			if item == nil {
				continue
			}
			var err error
			if ok, err = evalClause(item, part, names, values); err != nil {
				return false, err
			}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

var clauseSplit = regexp.MustCompile(`\)\s+AND\s+\(`)

// matches evaluates "(clause) AND (clause)" filters where each clause is
// "name IN (:a, :b)" or "name BETWEEN :a AND :b".
func matches(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "(") || !strings.HasSuffix(expr, ")") {
		return false, fmt.Errorf("filter clauses must be parenthesized: %q", expr)
	}
	for _, clause := range clauseSplit.Split(expr[1:len(expr)-1], -1) {
		ok, err := evalClause(item, strings.TrimSpace(clause), names, values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evalClause(item map[string]types.AttributeValue, clause string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.Contains(clause, " <= "):
		parts := strings.SplitN(clause, " <= ", 2)
		attr := item[resolveName(strings.TrimSpace(parts[0]), names)]
		c := compare(attr, values[strings.TrimSpace(parts[1])])
		return c == -1 || c == 0, nil
	case strings.Contains(clause, " IN "):
		parts := strings.SplitN(clause, " IN ", 2)
		attr := item[resolveName(strings.TrimSpace(parts[0]), names)]
		list := strings.Trim(strings.TrimSpace(parts[1]), "()")
		for _, ph := range strings.Split(list, ",") {
			if equal(attr, values[strings.TrimSpace(ph)]) {
				return true, nil
			}
		}
		return false, nil
	case strings.Contains(clause, " BETWEEN "):
		parts := strings.SplitN(clause, " BETWEEN ", 2)
		attr := item[resolveName(strings.TrimSpace(parts[0]), names)]
		bounds := strings.SplitN(parts[1], " AND ", 2)
		if len(bounds) != 2 {
			return false, fmt.Errorf("bad BETWEEN clause %q", clause)
		}
		lo, hi := values[strings.TrimSpace(bounds[0])], values[strings.TrimSpace(bounds[1])]
		return compare(attr, lo) >= 0 && compare(attr, hi) <= 0, nil
	}
	return false, fmt.Errorf("unsupported clause %q", clause)
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if v, ok := names[n]; ok {
			return v
		}
	}
	return n
}

func equal(a, b types.AttributeValue) bool {
	return a != nil && b != nil && compare(a, b) == 0
}

func compare(a, b types.AttributeValue) int {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, _ := strconv.ParseFloat(av.Value, 64)
			y, _ := strconv.ParseFloat(bv.Value, 64)
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return -2
}

func copyItem(m map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }

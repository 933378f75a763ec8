package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted reports whether item carries a TTL that has passed.
func IsDeleted(item map[string]types.AttributeValue) bool {
	ttlNum, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr returns the filter expression that excludes deleted items.
// It expects "#ttl" and ":now" bound as by TTLFilterNames and TTLFilterValues.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for TTLFilterExpr.
func TTLFilterNames() map[string]string {
	return map[string]string{"#ttl": "ttl"}
}

// TTLFilterValues returns expression attribute values for TTLFilterExpr.
func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{":now": unixAttr(time.Now().Unix())}
}

// ParentExistsCondition is the condition expression for parent validation:
// the parent exists and is not deleted.
func ParentExistsCondition() string {
	return "attribute_exists(id) AND (" + TTLFilterExpr() + ")"
}

func unixAttr(ts int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(ts, 10)}
}

func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

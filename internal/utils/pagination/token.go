package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const offsetPrefix = "offset"

// DefaultLimit is used when a caller does not pass a page size.
const DefaultLimit = 100

// MaxLimit caps the page size of list endpoints.
const MaxLimit = 1000

// EncodeOffsetToken creates an opaque token pointing at the record offset within a collection.
// The collection name is part of the token so tokens cannot be replayed across collections.
func EncodeOffsetToken(collection string, offset int) string {
	tokenStr := fmt.Sprintf("%s|%s|%d", offsetPrefix, collection, offset)
	return base64.RawURLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeOffsetToken parses a token produced by EncodeOffsetToken.
func DecodeOffsetToken(token, collection string) (int, error) {
	decodedBytes, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.Split(string(decodedBytes), "|")
	if len(parts) != 3 || parts[0] != offsetPrefix {
		return 0, fmt.Errorf("invalid pagination token format (split)")
	}
	if parts[1] != collection {
		return 0, fmt.Errorf("pagination token belongs to collection %q", parts[1])
	}
	offset, err := strconv.Atoi(parts[2])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid pagination token format (offset parse)")
	}
	return offset, nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

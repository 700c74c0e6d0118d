package feed

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// ErrBadCursor is returned when a cursor cannot be decoded.
var ErrBadCursor = errors.New("malformed feed cursor")

func encodeCursor(createdAt int64, id string) Cursor {
	raw := strconv.FormatInt(createdAt, 10) + ":" + id
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(raw)))
}

func decodeCursor(c Cursor) (createdAt int64, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return 0, "", ErrBadCursor
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return 0, "", ErrBadCursor
	}
	createdAt, err = strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", ErrBadCursor
	}
	return createdAt, id, nil
}

package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"RProject/tools/errs"
)

// Cursor is the opaque paging position: (created_at ms, msg_id), the same
// composite the message index sorts on. Clients must treat it as a token.
type Cursor struct {
	TS int64
	ID string
}

func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%s", c.TS, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, errs.ErrValidation.WrapMsg("bad cursor")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, errs.ErrValidation.WrapMsg("bad cursor")
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ts <= 0 || parts[1] == "" {
		return Cursor{}, errs.ErrValidation.WrapMsg("bad cursor")
	}
	return Cursor{TS: ts, ID: parts[1]}, nil
}

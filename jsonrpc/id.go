package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"sync/atomic"
)

// ID is a JSON-RPC request identifier: a number, a string or null.
// The zero value serializes as null.
//
// Reference: https://www.jsonrpc.org/specification#request_object
type ID struct {
	intID *uint64
	strID string
}

func IDFromInt(id uint64) ID {
	return ID{intID: &id}
}

func IDFromStr(id string) ID {
	return ID{strID: id}
}

// String returns the ID as a string, or "null" when unset.
func (id ID) String() string {
	switch {
	case id.intID != nil:
		return strconv.FormatUint(*id.intID, 10)
	case id.strID != "":
		return id.strID
	default:
		return "null"
	}
}

func (id ID) IsEmpty() bool {
	return id.intID == nil && id.strID == ""
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.intID != nil:
		return []byte(strconv.FormatUint(*id.intID, 10)), nil
	case id.strID != "":
		return json.Marshal(id.strID)
	default:
		return []byte("null"), nil
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var intID uint64
	if err := json.Unmarshal(data, &intID); err == nil {
		id.intID = &intID
		return nil
	}

	return json.Unmarshal(data, &id.strID)
}

// IDGenerator hands out sequential request ids. Safe for concurrent use.
type IDGenerator struct {
	next atomic.Uint64
}

// Next returns the next id, wrapping around on overflow.
func (g *IDGenerator) Next() ID {
	return IDFromInt(g.next.Add(1) - 1)
}

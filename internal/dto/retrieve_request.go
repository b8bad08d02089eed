package dto

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/goccy/go-json"

	"rivermonitor/internal/query"
)

// RetrieveRequest is the body of POST /retrieve. A bound counts as present
// only when it is a JSON integer; null, strings and fractions leave it absent.
type RetrieveRequest struct {
	Start query.Optional[int64]
	End   query.Optional[int64]
}

// UnmarshalJSON accepts a JSON object with optional start and end members.
func (r *RetrieveRequest) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return errNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Start = integerField(fields["start"])
	r.End = integerField(fields["end"])
	return nil
}

// Window returns the requested time window.
func (r RetrieveRequest) Window() query.Window {
	return query.Window{Start: r.Start, End: r.End}
}

// ParseRetrieveRequest decodes a /retrieve body.
func ParseRetrieveRequest(body []byte) (RetrieveRequest, error) {
	var req RetrieveRequest
	if !isObject(body) {
		return req, errNotObject
	}
	err := json.Unmarshal(body, &req)
	return req, err
}

var errNotObject = errors.New("retrieve request must be a JSON object")

func isObject(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
}

func integerField(raw json.RawMessage) query.Optional[int64] {
	v, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return query.None[int64]()
	}
	return query.Some(v)
}

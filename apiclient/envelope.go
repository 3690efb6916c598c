package apiclient

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Page carries the pagination metadata some feature endpoints return.
type Page[T any] struct {
	Items    []T
	Count    int
	Next     string
	Previous string
}

// DecodeList decodes a collection response. The feature endpoints are not
// consistent about shape, so all three are accepted: a bare JSON array,
// a {"data": [...]} wrapper, and a {"results": [...], "count", "next",
// "previous"} paginated envelope.
func DecodeList[T any](body []byte) ([]T, error) {
	page, err := DecodePage[T](body)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// DecodePage decodes a collection response preserving pagination metadata.
// Non-paginated shapes produce a Page whose Count is the item count.
func DecodePage[T any](body []byte) (Page[T], error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page[T]{}, errors.Wrap(err, "[DecodePage] bare array")
		}
		return Page[T]{Items: items, Count: len(items)}, nil
	}

	var envelope struct {
		Data     json.RawMessage `json:"data"`
		Results  json.RawMessage `json:"results"`
		Count    int             `json:"count"`
		Next     string          `json:"next"`
		Previous string          `json:"previous"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Page[T]{}, errors.Wrap(err, "[DecodePage] envelope")
	}

	raw := envelope.Results
	if raw == nil {
		raw = envelope.Data
	}
	if raw == nil {
		return Page[T]{}, errors.New("[DecodePage] no data or results field")
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return Page[T]{}, errors.Wrap(err, "[DecodePage] items")
	}

	page := Page[T]{Items: items, Count: envelope.Count, Next: envelope.Next, Previous: envelope.Previous}
	if page.Count == 0 {
		page.Count = len(items)
	}
	return page, nil
}

// DecodeOne decodes a single-record response, unwrapping an optional
// {"data": {...}} envelope.
func DecodeOne[T any](body []byte) (T, error) {
	var zero T
	trimmed := bytes.TrimSpace(body)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		trimmed = envelope.Data
	}

	var record T
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return zero, errors.Wrap(err, "[DecodeOne] record")
	}
	return record, nil
}

// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package tushare downloads daily prices, valuations, fundamentals and index
// history from the Tushare Pro API.
package tushare

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultURL       = "http://api.tushare.pro"
	DefaultRateLimit = 200
	DefaultPageSize  = 6000

	maxPages = 1000
)

// Options configures a Client
type Options struct {
	URL   string
	Token string

	// RateLimit is the number of requests allowed per minute
	RateLimit int
	Retries   int
	Timeout   time.Duration
	PageSize  int
}

// Client issues rate limited requests against the Tushare Pro API
type Client struct {
	URL      string
	PageSize int

	token   string
	client  *resty.Client
	limiter *rate.Limiter
}

type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// Table is the tabular payload of an API response
type Table struct {
	Fields []string
	Rows   [][]gjson.Result

	index map[string]int
}

// NewClient creates a client; the token is required
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrMissingToken
	}

	if opts.URL == "" {
		opts.URL = DefaultURL
	}

	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	client := resty.New().
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})

	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &Client{
		URL:      opts.URL,
		PageSize: opts.PageSize,
		token:    opts.Token,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(float64(opts.RateLimit)/float64(61)), 1),
	}, nil
}

// Resty returns the underlying HTTP client
func (c *Client) Resty() *resty.Client {
	return c.client
}

// Query calls apiName with params and returns every page of the result
func (c *Client) Query(ctx context.Context, apiName string, params map[string]string, fields string) (*Table, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tushare.Query", trace.WithAttributes(
		attribute.String("api", apiName),
	))
	defer span.End()

	table := &Table{}
	for page := 0; page < maxPages; page++ {
		pageParams := make(map[string]string, len(params)+2)
		for k, v := range params {
			pageParams[k] = v
		}
		pageParams["limit"] = strconv.Itoa(c.PageSize)
		pageParams["offset"] = strconv.Itoa(page * c.PageSize)

		body, err := c.post(ctx, apiName, pageParams, fields)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request failed")
			return nil, err
		}

		numRows := table.append(body)
		if numRows == 0 || !gjson.GetBytes(body, "data.has_more").Bool() {
			span.SetAttributes(attribute.Int("rows", table.Len()))
			return table, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrTooManyPages, apiName)
}

func (c *Client) post(ctx context.Context, apiName string, params map[string]string, fields string) ([]byte, error) {
	subLog := log.With().Str("API", apiName).Logger()

	payload, err := json.Marshal(&request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		subLog.Error().Err(err).Msg("could not encode request")
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		subLog.Error().Err(err).Msg("rate limit wait failed")
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.URL)
	if err != nil {
		subLog.Error().Err(err).Msg("resty returned an error when querying tushare")
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		subLog.Error().Int("StatusCode", resp.StatusCode()).Str("ResponseBody", string(resp.Body())).
			Msg("received an invalid status code when querying tushare")
		return nil, fmt.Errorf("%w (%d): %s", ErrInvalidStatusCode, resp.StatusCode(), string(resp.Body()))
	}

	body := resp.Body()
	if code := gjson.GetBytes(body, "code").Int(); code != 0 {
		msg := gjson.GetBytes(body, "msg").String()
		subLog.Error().Int64("Code", code).Str("Msg", msg).Msg("tushare returned an error")
		return nil, fmt.Errorf("%w (%d): %s", ErrAPI, code, msg)
	}

	return body, nil
}

// append adds the rows of a response body and returns the number added
func (t *Table) append(body []byte) int {
	if t.index == nil {
		t.index = make(map[string]int)
		for idx, field := range gjson.GetBytes(body, "data.fields").Array() {
			t.Fields = append(t.Fields, field.String())
			t.index[field.String()] = idx
		}
	}

	items := gjson.GetBytes(body, "data.items").Array()
	for _, item := range items {
		t.Rows = append(t.Rows, item.Array())
	}
	return len(items)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) get(row int, field string) (gjson.Result, bool) {
	col, ok := t.index[field]
	if !ok || col >= len(t.Rows[row]) {
		return gjson.Result{}, false
	}
	return t.Rows[row][col], true
}

// String returns field of row as a string; empty if missing
func (t *Table) String(row int, field string) string {
	val, ok := t.get(row, field)
	if !ok || val.Type == gjson.Null {
		return ""
	}
	return val.String()
}

// Float returns field of row as a float; NaN if missing or null
func (t *Table) Float(row int, field string) float64 {
	val, ok := t.get(row, field)
	if !ok {
		return math.NaN()
	}

	switch val.Type {
	case gjson.Number:
		return val.Float()
	case gjson.String:
		f, err := data.ParseFloat(val.String())
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Date parses field of row as a YYYYMMDD date
func (t *Table) Date(row int, field string) (time.Time, error) {
	return data.ParseDate(t.String(row, field))
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"signalgateway/internal/metrics"
	"signalgateway/internal/signal"
)

const restBackend = "rest"

// RESTRepository talks to a hosted PostgREST endpoint (<project>/rest/v1/<table>).
type RESTRepository struct {
	client *resty.Client
	table  string
}

type RESTOptions struct {
	URL     string
	Key     string
	Table   string
	Timeout time.Duration
}

func NewRESTRepository(opts RESTOptions) (*RESTRepository, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, errors.New("rest store url is empty")
	}
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		return nil, errors.New("rest store key is empty")
	}
	table := opts.Table
	if table == "" {
		table = "signals"
	}

	client := resty.New().
		SetBaseURL(base+"/rest/v1").
		SetHeader("apikey", key).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &RESTRepository{client: client, table: table}, nil
}

func (r *RESTRepository) Insert(ctx context.Context, signals ...signal.Signal) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(restBackend, "insert", start, err) }(time.Now())

	payload := make([]map[string]any, 0, len(signals))
	for _, s := range signals {
		payload = append(payload, s.Payload())
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(payload).
		Post("/" + r.table)
	if err != nil {
		return nil, err
	}
	return decodeRecords(resp)
}

func (r *RESTRepository) Select(ctx context.Context, q signal.Query) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(restBackend, "select", start, err) }(time.Now())

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(selectParams(q)).
		Get("/" + r.table)
	if err != nil {
		return nil, err
	}
	return decodeRecords(resp)
}

func (r *RESTRepository) DeleteByID(ctx context.Context, id int64) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(restBackend, "delete_by_id", start, err) }(time.Now())

	return r.delete(ctx, url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}})
}

func (r *RESTRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(restBackend, "delete_older_than", start, err) }(time.Now())

	return r.delete(ctx, url.Values{"created_at": {"lt." + cutoff.UTC().Format(time.RFC3339Nano)}})
}

func (r *RESTRepository) delete(ctx context.Context, filter url.Values) ([]signal.Record, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(filter).
		Delete("/" + r.table)
	if err != nil {
		return nil, err
	}
	return decodeRecords(resp)
}

// selectParams renders q as PostgREST horizontal filters.
func selectParams(q signal.Query) url.Values {
	v := url.Values{}
	v.Set("select", "*")
	v.Set("order", "created_at.desc")
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Style != nil {
		v.Set("style", "eq."+string(*q.Style))
	}
	if q.Rating != nil {
		v.Set("rating", "eq."+string(*q.Rating))
	}
	if q.MinScore != nil {
		v.Set("score", "gte."+strconv.Itoa(*q.MinScore))
	}
	return v
}

func decodeRecords(resp *resty.Response) ([]signal.Record, error) {
	body := resp.Body()
	if resp.IsError() {
		return nil, fmt.Errorf("rest store http %d: %s", resp.StatusCode(), strings.TrimSpace(string(body)))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var recs []signal.Record
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("decode rest store response: %w", err)
	}
	return recs, nil
}

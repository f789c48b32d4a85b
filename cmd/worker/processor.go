package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-lambda-go/events"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

const (
	metricRowChanges = "RowChanges"
	metricPartySize  = "PartySize"

	// CloudWatch rejects a datum with more Values than this.
	maxValuesPerDatum = 150
)

// Processor turns a batch of change events into CloudWatch metrics.
type Processor struct {
	cw        aws.CloudWatchAPI
	namespace string
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewProcessor creates a processor publishing under namespace.
func NewProcessor(cw aws.CloudWatchAPI, namespace string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{cw: cw, namespace: namespace, logger: logger, nowFunc: time.Now}
}

// Handle decodes every record and publishes one PutMetricData call for the
// batch. Undecodable records are reported as batch item failures so SQS
// retries only them and eventually moves them to the DLQ. A CloudWatch
// error fails the whole batch.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	counts := map[metricKey]int{}
	var parties []float64

	for _, rec := range ev.Records {
		msg, err := decodeMessage(rec.Body)
		if err != nil {
			p.logger.Warn("skipping change message", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
			continue
		}
		counts[metricKey{table: msg.Table, eventType: msg.Type}]++

		if msg.Table == changefeed.TableApprovals && msg.Type == changefeed.Insert {
			var row approvalRow
			if err := json.Unmarshal(msg.New, &row); err == nil && row.NumberOfPeople > 0 {
				parties = append(parties, float64(row.NumberOfPeople))
			}
		}
		p.logger.Debug("change event",
			zap.String("table", msg.Table),
			zap.String("event_type", string(msg.Type)),
			zap.Time("commit_timestamp", msg.CommitTimestamp))
	}

	data := p.datums(counts, parties)
	if len(data) == 0 {
		return resp, nil
	}
	_, err := p.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		return events.SQSEventResponse{}, fmt.Errorf("put metric data: %w", err)
	}
	p.logger.Info("published change metrics",
		zap.Int("records", len(ev.Records)),
		zap.Int("datums", len(data)),
		zap.Int("failures", len(resp.BatchItemFailures)))
	return resp, nil
}

func decodeMessage(body string) (ChangeMessage, error) {
	msg, err := changefeed.Decode([]byte(body))
	if err != nil {
		return ChangeMessage{}, fmt.Errorf("invalid message body: %w", err)
	}
	return msg, nil
}

// datums sorts the RowChanges counts by table and event type so calls are
// deterministic, then appends PartySize datums of at most
// maxValuesPerDatum values each.
func (p *Processor) datums(counts map[metricKey]int, parties []float64) []cwtypes.MetricDatum {
	now := p.nowFunc().UTC()
	keys := make([]metricKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].table != keys[j].table {
			return keys[i].table < keys[j].table
		}
		return keys[i].eventType < keys[j].eventType
	})

	data := make([]cwtypes.MetricDatum, 0, len(keys)+(len(parties)+maxValuesPerDatum-1)/maxValuesPerDatum)
	for _, k := range keys {
		data = append(data, cwtypes.MetricDatum{
			MetricName: sdkaws.String(metricRowChanges),
			Dimensions: []cwtypes.Dimension{
				{Name: sdkaws.String("Table"), Value: sdkaws.String(k.table)},
				{Name: sdkaws.String("EventType"), Value: sdkaws.String(string(k.eventType))},
			},
			Value:     sdkaws.Float64(float64(counts[k])),
			Unit:      cwtypes.StandardUnitCount,
			Timestamp: sdkaws.Time(now),
		})
	}
	for len(parties) > 0 {
		n := min(len(parties), maxValuesPerDatum)
		data = append(data, cwtypes.MetricDatum{
			MetricName: sdkaws.String(metricPartySize),
			Values:     parties[:n],
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  sdkaws.Time(now),
		})
		parties = parties[n:]
	}
	return data
}

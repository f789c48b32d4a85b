package main

import (
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

// ChangeMessage is the queue payload: one change event per SQS message,
// published by the api's queue notifier.
type ChangeMessage = changefeed.Event

// approvalRow is the part of an approval row the worker reads.
type approvalRow struct {
	NumberOfPeople int `json:"number_of_people"`
}

// metricKey groups row changes for one RowChanges datum.
type metricKey struct {
	table     string
	eventType changefeed.EventType
}

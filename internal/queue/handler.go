package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// IngestURLMsg asks the worker to ingest one URL.
type IngestURLMsg struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	RequestedAt time.Time `json:"requested_at"`
}

// CommunityMsg asks the worker to recompute communities.
type CommunityMsg struct {
	Reason     string `json:"reason"`
	DocumentID string `json:"doc_id,omitempty"`
}

// EnqueueURL publishes an ingestion job and returns its id.
func EnqueueURL(pub Publisher, rawURL string) (string, error) {
	jobID, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(IngestURLMsg{JobID: jobID, URL: rawURL, RequestedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := PublishFIFO(pub, IngestQueue, body); err != nil {
		return "", err
	}
	return jobID, nil
}

// EnqueueCommunities publishes a community detection request.
func EnqueueCommunities(pub Publisher, msg CommunityMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(pub, CommunityQueue, body)
}

// Ingestor is implemented by *graph.GraphClient.
type Ingestor interface {
	IngestURL(ctx context.Context, rawURL string) (graph.IngestResult, error)
}

// Trigger is implemented by *community.Scheduler.
type Trigger interface {
	Trigger()
}

// ProcessIngestURLMessage ingests the URL of msg. When the graph changed a
// community run is requested on pub.
func ProcessIngestURLMessage(ctx context.Context, ingestor Ingestor, pub Publisher, msg []byte) error {
	var data IngestURLMsg
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if data.URL == "" {
		return fmt.Errorf("%w: message without url", common.ErrInvalidInput)
	}

	logger.Info("[Queue] Ingesting URL", "job_id", data.JobID, "url", data.URL)
	res, err := ingestor.IngestURL(ctx, data.URL)
	if err != nil {
		return err
	}
	if res.Unchanged {
		return nil
	}

	if err := EnqueueCommunities(pub, CommunityMsg{Reason: "ingest", DocumentID: res.DocumentID}); err != nil {
		logger.Warn("[Queue] Failed to request community detection", "doc_id", res.DocumentID, "err", err)
	}
	return nil
}

// ProcessCommunityMessage hands the request to the scheduler, which
// collapses bursts of requests into one run.
func ProcessCommunityMessage(ctx context.Context, trigger Trigger, msg []byte) error {
	var data CommunityMsg
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	logger.Debug("[Queue] Community detection requested", "reason", data.Reason, "doc_id", data.DocumentID)
	trigger.Trigger()
	return nil
}

// HandleProcessingError acks msg after routing it to the retry queue, or to
// the dead-letter queue once it has been retried maxRetries times. Input
// errors are dead-lettered immediately since a retry cannot fix them.
func HandleProcessingError(pub Publisher, msg amqp091.Delivery, queueName string, cause error) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		switch v := val.(type) {
		case int32:
			retries = int(v)
		case int64:
			retries = int(v)
		case int:
			retries = v
		}
	}

	target := queueName + "_retry"
	if retries >= maxRetries || common.IsValidation(cause) {
		target = queueName + "_dlq"
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)
	if cause != nil {
		headers["x-error"] = cause.Error()
	}

	err := pub.Publish("", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	logger.Info("[Queue] Message rerouted", "queue", target, "retries", retries+1)
	_ = msg.Ack(false)
}

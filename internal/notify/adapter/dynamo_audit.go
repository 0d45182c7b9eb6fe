package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/dynamo"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

// auditDynamoDB is a narrow, consumer-defined interface for the DynamoDB
// operations the audit store needs. The real *dynamodb.Client satisfies it;
// test stubs implement it directly.
type auditDynamoDB interface {
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
}

// Compile-time interface satisfaction check.
var _ app.AuditSink = (*AuditStore)(nil)

// auditItem is the DynamoDB item shape for the audit table. The partition
// key is the channel name; the sort key orders entries by send time with a
// UUID suffix so simultaneous sends never collide. The ttl attribute lets
// the table expire rows past the retention window without any flushing
// process in this service.
type auditItem struct {
	Channel    string `dynamodbav:"channel"`
	SentAtID   string `dynamodbav:"sent_at_id"`
	SentAt     string `dynamodbav:"sent_at"`
	Recipient  string `dynamodbav:"recipient"`
	Sender     string `dynamodbav:"sender,omitempty"`
	Summary    string `dynamodbav:"summary,omitempty"`
	ExternalID string `dynamodbav:"external_id,omitempty"`
	Status     string `dynamodbav:"status"`
	TTL        int64  `dynamodbav:"ttl"`
}

// AuditStore persists dispatch audit entries in DynamoDB.
type AuditStore struct {
	db            auditDynamoDB
	tableName     string
	retentionDays int
}

// NewAuditStore creates an AuditStore writing to tableName. Entries carry a
// TTL of retentionDays past their timestamp.
func NewAuditStore(db auditDynamoDB, tableName string, retentionDays int) *AuditStore {
	if retentionDays < 1 {
		retentionDays = int(domain.AuditRetention.Hours() / 24)
	}
	return &AuditStore{
		db:            db,
		tableName:     tableName,
		retentionDays: retentionDays,
	}
}

// Record appends one audit entry.
func (s *AuditStore) Record(ctx context.Context, entry app.AuditEntry) error {
	ctx, span := tracer.Start(ctx, "audit.record")
	defer span.End()

	sentAt := entry.Timestamp.UTC().Format(time.RFC3339Nano)
	item := auditItem{
		Channel:    string(entry.Channel),
		SentAtID:   sentAt + "#" + uuid.NewString(),
		SentAt:     sentAt,
		Recipient:  entry.Recipient,
		Sender:     entry.Sender,
		Summary:    entry.Summary,
		ExternalID: entry.ExternalID,
		Status:     entry.Status,
		TTL:        entry.Timestamp.AddDate(0, 0, s.retentionDays).Unix(),
	}

	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("audit store: marshal entry: %w", err)
	}

	if _, err := s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	}); err != nil {
		return fmt.Errorf("audit store: put entry: %w", err)
	}
	return nil
}

// QueryRecent returns the audit entries for one channel with timestamps at
// or after since, newest first.
func (s *AuditStore) QueryRecent(ctx context.Context, channel domain.Channel, since time.Time) ([]app.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "audit.query_recent")
	defer span.End()

	keyExpr := "#ch = :ch AND #sk >= :since"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeNames: map[string]string{
			"#ch": "channel",
			"#sk": "sent_at_id",
		},
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":ch":    &dynamo.AttributeValueMemberS{Value: string(channel)},
			":since": &dynamo.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)},
		},
		ScanIndexForward: dynamo.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("audit store: query %s since %s: %w", channel, since.Format(time.RFC3339), err)
	}

	var items []auditItem
	if err := dynamo.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("audit store: unmarshal entries: %w", err)
	}

	entries := make([]app.AuditEntry, 0, len(items))
	for _, it := range items {
		ts, err := time.Parse(time.RFC3339Nano, it.SentAt)
		if err != nil {
			return nil, fmt.Errorf("audit store: bad sent_at %q: %w", it.SentAt, err)
		}
		entries = append(entries, app.AuditEntry{
			Timestamp:  ts,
			Channel:    domain.Channel(it.Channel),
			Recipient:  it.Recipient,
			Sender:     it.Sender,
			Summary:    it.Summary,
			ExternalID: it.ExternalID,
			Status:     it.Status,
		})
	}
	return entries, nil
}

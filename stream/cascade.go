// Package stream handles DynamoDB Streams events for the archive tables.
//
// Deleting an Asset only sets its TTL. The resulting MODIFY event reaches
// HandleCascadeDelete, which copies the TTL onto the Asset's Instantiations
// and releases the relationship and unique-constraint records. Each child
// deletion produces its own event, so the cascade continues down the tree.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/pbcore/store"
)

// DefaultConcurrency bounds parallel TTL writes to the children of one entity.
const DefaultConcurrency = 8

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store       *store.Store
	logger      *slog.Logger
	concurrency int
}

// NewHandler creates a stream handler. If the store has a registry, child
// lookups are skipped for entity types without registered children.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:       s,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency sets how many child TTL writes run in parallel. n < 1 means 1.
func (h *Handler) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	h.concurrency = n
}

// HandleCascadeDelete propagates newly set TTLs to children. It is the Lambda
// handler for the archive tables' streams. A failing record aborts the batch
// so Lambda retries it.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	parentRef := getStringAttr(record.Change.NewImage, "parent_ref")
	uniquePKs := getStringListAttr(record.Change.NewImage, "_unique_pks")
	if entityRef == "" {
		h.logger.Warn("skipping deleted item without entity_ref", "eventID", record.EventID)
		return nil
	}

	logger := h.logger.With("entityRef", entityRef, "ttl", newTTL)
	logger.Info("processing cascade delete", "parentRef", parentRef)

	children, err := h.children(ctx, entityRef)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, child := range children {
		g.Go(func() error {
			if err := h.store.SetTTLByKey(gctx, child.TableName, child.Key, newTTL); err != nil {
				// The child's own stream record is the retry path.
				logger.Warn("failed to set TTL on child", "child", child.Ref, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if parentRef != "" {
		if err := h.store.SetRelationshipTTL(ctx, entityRef, parentRef, newTTL); err != nil {
			logger.Warn("failed to set relationship TTL", "parentRef", parentRef, "error", err)
		}
	}

	for _, pk := range uniquePKs {
		if err := h.store.SetUniqueConstraintTTL(ctx, pk, newTTL); err != nil {
			logger.Warn("failed to set unique constraint TTL", "pk", pk, "error", err)
		}
	}

	logger.Info("cascade delete completed",
		"childrenProcessed", len(children),
		"uniqueConstraints", len(uniquePKs),
	)
	return nil
}

func (h *Handler) children(ctx context.Context, entityRef string) ([]store.ChildRef, error) {
	if reg := h.store.Registry(); reg != nil {
		entityType, _, ok := store.ParseRef(entityRef)
		if ok && !reg.HasChildren(entityType) {
			return nil, nil
		}
	}
	children, err := h.store.QueryAllChildren(ctx, entityRef)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return children, nil
}

func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		n, _ := strconv.ParseInt(v.Number(), 10, 64)
		return n
	}
	return 0
}

func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var result []string
	for _, item := range v.List() {
		if item.DataType() == events.DataTypeString {
			result = append(result, item.String())
		}
	}
	return result
}

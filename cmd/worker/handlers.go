package main

import (
	"context"
	"encoding/json"
	"fmt"

	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/infrastructure/storage/postgres"
	"sellerdesk/pkg/logger"
)

// Reprocessor re-validates listings of a seller.
type Reprocessor interface {
	Reprocess(ctx context.Context, sellerID string, ids []id.ID) (synced, failed int, err error)
}

// reprocessHandler handles bulk.EventReprocessRequested.
// A payload that cannot be decoded is returned as an error so the relay
// retries and finally parks it in the DLQ.
func reprocessHandler(svc Reprocessor) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		var ev bulk.ReprocessRequested
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
		}
		if ev.SellerID == "" {
			return fmt.Errorf("%s %s: seller is missing", msg.EventType, msg.ID)
		}

		synced, failed, err := svc.Reprocess(ctx, ev.SellerID, ev.ListingIDs)
		if err != nil {
			return fmt.Errorf("reprocess %s: %w", ev.Operation, err)
		}
		logger.Info(ctx, "listings reprocessed",
			"operation", ev.Operation,
			"seller_id", ev.SellerID,
			"requested", len(ev.ListingIDs),
			"synced", synced,
			"failed", failed,
		)
		return nil
	})
}

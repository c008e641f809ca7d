// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// MessageEnricher resolves a BasicMessage's sender ID into a full user
// record, producing a displayable Message. Senders are looked up in
// the room's member cache first, then fetched through the global user
// store. Successfully resolved senders are merged into the room's
// member cache as a side effect, so later messages from the same
// sender resolve without a network round trip.
type MessageEnricher struct {
	userStore *GlobalUserStore
	room      *Room
	logger    *slog.Logger
}

// NewMessageEnricher creates an enricher for one room. A nil logger
// defaults to slog.Default().
func NewMessageEnricher(userStore *GlobalUserStore, room *Room, logger *slog.Logger) *MessageEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageEnricher{
		userStore: userStore,
		room:      room,
		logger:    logger,
	}
}

// Enrich resolves basic's sender and returns the enriched message. A
// failed sender lookup fails only this message — batch callers drop it
// and keep their siblings.
func (e *MessageEnricher) Enrich(ctx context.Context, basic BasicMessage) (Message, error) {
	sender := e.room.Users.Get(basic.SenderID)
	if sender == nil {
		var err error
		sender, err = e.userStore.Fetch(ctx, basic.SenderID)
		if err != nil {
			return Message{}, fmt.Errorf("chat: enriching message %d: %w", basic.ID, err)
		}
	}
	e.room.Users.AddOrMerge(sender)
	return Message{BasicMessage: basic, Sender: sender}, nil
}

// EnrichAll enriches a batch of messages with settle-all semantics:
// every enrichment runs to completion (success or failure) before
// EnrichAll returns. Failed messages are logged and dropped; the
// survivors are returned sorted ascending by ID, which is
// chronological order regardless of the batch's arrival order.
func (e *MessageEnricher) EnrichAll(ctx context.Context, basics []BasicMessage) []Message {
	messages := make([]Message, 0, len(basics))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, basic := range basics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			message, err := e.Enrich(ctx, basic)
			if err != nil {
				e.logger.Debug("dropping message from enrichment batch",
					"message_id", basic.ID,
					"sender_id", basic.SenderID,
					"error", err,
				)
				return
			}
			mu.Lock()
			messages = append(messages, message)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.SortFunc(messages, func(a, b Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return messages
}

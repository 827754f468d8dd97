/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"context"

	"exchange-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event kinds published after commit
const (
	EventTransfer           = "transfer"
	EventConvert            = "convert"
	EventPay                = "pay"
	EventDepositApproved    = "deposit_approved"
	EventWithdrawalReserved = "withdrawal_requested"
	EventWithdrawalRejected = "withdrawal_rejected"
	EventOrderPlaced        = "order_placed"
	EventOrderCanceled      = "order_canceled"
	EventOrderFilled        = "order_filled"
	EventPositionOpened     = "position_opened"
	EventPositionClosed     = "position_closed"
	EventSignalResolved     = "signal_resolved"
	EventReferralReward     = "referral_reward"
)

// publish hands a committed operation to the sink. The ledger is already consistent at this
// point, so a sink failure is logged and never reported to the caller.
func (s *Service) publish(ctx context.Context, kind, reference, userId string, deltas []models.BalanceDelta, metadata map[string]string) {
	if s.sink == nil || len(deltas) == 0 {
		return
	}
	if origin := models.GetOrigin(ctx); origin != nil {
		if metadata == nil {
			metadata = make(map[string]string)
		}
		if origin.RequestId != "" {
			metadata["request_id"] = origin.RequestId
		}
		if origin.ActorId != "" {
			metadata["actor_id"] = origin.ActorId
		}
		if origin.Source != "" {
			metadata["source"] = origin.Source
		}
	}

	event := models.LedgerEvent{
		Id:         uuid.New().String(),
		Kind:       kind,
		Reference:  reference,
		UserId:     userId,
		Deltas:     deltas,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		zap.L().Warn("Failed to publish ledger event",
			zap.String("kind", kind),
			zap.String("reference", reference),
			zap.Error(err))
	}
}

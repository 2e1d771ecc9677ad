package service

import (
	"context"

	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Verify records a physical check of one tag. Every call stamps the row and
// appends a change log entry. A repeat of the same verification from the
// same actor and device inside the dedup window reuses the earlier audit
// entry instead of inserting a new one.
func (s *Service) Verify(ctx context.Context, req tagdomain.VerifyRequest) (*tagdomain.VerifyResponse, error) {
	tagID := tagdomain.NormalizeIdentifier(req.TagID)
	epc := tagdomain.NormalizeIdentifier(req.EPC)
	if tagID == "" && epc == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, tagdomain.ErrInvalidQuantity
	}

	rack := tagdomain.NormalizeText(req.RackLocation, true)
	actor := s.actorOr(req.Actor)
	deviceID := s.deviceOr(req.DeviceID)

	var resp *tagdomain.VerifyResponse
	err := s.mutate(ctx, "verify", func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error) {
		current, err := s.lockTag(ctx, tx, "verify", tagID, epc)
		if err != nil {
			return "", err
		}

		qtyAfter := current.Quantity
		if req.Quantity != nil {
			qtyAfter = *req.Quantity
		}
		rackAfter := rack.Resolve(current.RackLocation)

		if err := s.checkLocation(current.Area, rackAfter); err != nil {
			return "", err
		}

		now := tagdomain.StoreTime(s.clock.Now())
		replay, err := s.audits.FindReplay(ctx, tx, auditdomain.ReplayFilter{
			TagID:     current.TagID,
			QtyAfter:  qtyAfter,
			RackAfter: rackAfter,
			DeviceID:  deviceID,
			Actor:     actor,
			Since:     now.Add(-s.tags.AuditDedupWindow),
		})
		if err != nil {
			return "", err
		}
		if replay != nil && (current.Quantity != qtyAfter || !sameText(current.RackLocation, rackAfter)) {
			// The tag moved on since that check; this is a new verification.
			replay = nil
		}

		transition := auditdomain.Transition{
			QtyBefore:  current.Quantity,
			QtyAfter:   qtyAfter,
			RackBefore: current.RackLocation,
			RackAfter:  rackAfter,
		}
		summary := auditdomain.Summarize(transition)

		next := *current
		next.Quantity = qtyAfter
		next.RackLocation = rackAfter
		next.UpdatedAt = tagdomain.NextUpdatedAt(current.UpdatedAt, now)
		next.UpdatedBy = actor
		if err := s.repo.Save(ctx, tx, &next); err != nil {
			return "", err
		}

		saved, err := s.reload(ctx, tx, current.TagID)
		if err != nil {
			return "", err
		}

		hint := tagdomain.ActionWriteInfo
		if transition.QuantityChanged() {
			hint = tagdomain.ActionAdjustQty
		}
		action := tagdomain.ClassifyAction(tagdomain.SnapshotOf(*current), tagdomain.SnapshotOf(*saved), hint)

		remark := tagdomain.TextOrNil(req.Remark)
		if err := s.appendLog(ctx, tx, current, *saved, action, remark); err != nil {
			return "", err
		}

		if replay != nil {
			resp = &tagdomain.VerifyResponse{
				AuditID:      replay.ID.String(),
				Result:       replay.Result,
				ChangeNotes:  replay.ChangeNotes,
				Deduplicated: true,
				Tag:          tagdomain.ToResponse(*saved),
			}
			return actionReplayed, nil
		}

		entry := &auditdomain.Entry{
			ID:          s.genID.Generate(),
			TagID:       saved.TagID,
			LabelNumber: saved.LabelNumber,
			ItemCode:    saved.ItemCode,
			QtyBefore:   transition.QtyBefore,
			QtyAfter:    transition.QtyAfter,
			RackBefore:  transition.RackBefore,
			RackAfter:   transition.RackAfter,
			Result:      string(summary.Result),
			ChangeNotes: summary.Notes,
			Remark:      remark,
			DeviceID:    deviceID,
			Actor:       actor,
			CreatedAt:   now,
		}
		if summary.Changes != nil {
			entry.Changes = datatypes.JSONMap(summary.Changes)
		}
		if err := s.audits.Insert(ctx, tx, entry); err != nil {
			return "", err
		}

		resp = &tagdomain.VerifyResponse{
			AuditID:     entry.ID.String(),
			Result:      entry.Result,
			ChangeNotes: entry.ChangeNotes,
			Tag:         tagdomain.ToResponse(*saved),
		}
		return action, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag verified",
		zap.String("tag_id", resp.Tag.TagID),
		zap.String("audit_id", resp.AuditID),
		zap.String("result", resp.Result),
		zap.Bool("deduplicated", resp.Deduplicated),
		zap.String("device_id", deviceID),
	)
	return resp, nil
}

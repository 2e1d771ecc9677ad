package service

import (
	"context"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MarkAudited stamps audit_at without touching business fields.
func (s *Service) MarkAudited(ctx context.Context, req tagdomain.MarkAuditedRequest) (*tagdomain.Response, error) {
	tagID := tagdomain.NormalizeIdentifier(req.TagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	actor := s.actorOr(req.Actor)

	var saved *tagdomain.Tag
	err := s.mutate(ctx, "mark_audited", func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error) {
		current, err := s.lockTag(ctx, tx, "mark_audited", tagID, "")
		if err != nil {
			return "", err
		}

		next := *current
		stamp := tagdomain.NextUpdatedAt(current.UpdatedAt, s.clock.Now())
		next.AuditAt = &stamp
		next.UpdatedAt = stamp
		next.UpdatedBy = actor
		if err := s.repo.Save(ctx, tx, &next); err != nil {
			return "", err
		}

		saved, err = s.reload(ctx, tx, tagID)
		if err != nil {
			return "", err
		}
		if err := s.appendLog(ctx, tx, saved, *saved, tagdomain.ActionAudit, tagdomain.TextOrNil(req.Remark)); err != nil {
			return "", err
		}
		return tagdomain.ActionAudit, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag audited", zap.String("tag_id", tagID), zap.String("actor", actor))

	resp := tagdomain.ToResponse(*saved)
	return &resp, nil
}

// Deregister retires a tag. The label stays attached.
func (s *Service) Deregister(ctx context.Context, req tagdomain.DeregisterRequest) (*tagdomain.Response, error) {
	return s.retire(ctx, "deregister", req.TagID, req.PrevUpdatedAt, req.Actor, req.Remark, "")
}

// Reuse retires a tag and attaches a new label to it.
func (s *Service) Reuse(ctx context.Context, req tagdomain.ReuseRequest) (*tagdomain.Response, error) {
	label := tagdomain.NormalizeIdentifier(req.NewLabelNumber)
	if label == "" {
		return nil, tagdomain.ErrInvalidLabelNumber
	}
	return s.retire(ctx, "reuse", req.TagID, req.PrevUpdatedAt, req.Actor, req.Remark, label)
}

// retire resets business fields and logs REUSE. A non-empty newLabel
// replaces the label after a uniqueness check.
func (s *Service) retire(ctx context.Context, operation, rawTagID, prevUpdatedAt, rawActor, remark, newLabel string) (*tagdomain.Response, error) {
	tagID := tagdomain.NormalizeIdentifier(rawTagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	prev, err := parseVersion(prevUpdatedAt)
	if err != nil {
		return nil, err
	}
	actor := s.actorOr(rawActor)

	var saved *tagdomain.Tag
	err = s.mutate(ctx, operation, func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error) {
		current, err := s.lockTag(ctx, tx, operation, tagID, "")
		if err != nil {
			return "", err
		}
		if err := checkVersion(prev, current.UpdatedAt); err != nil {
			return "", err
		}

		next := *current
		if newLabel != "" {
			if !sameText(current.LabelNumber, &newLabel) {
				if err := s.checkLabelFree(ctx, tx, newLabel, tagID); err != nil {
					return "", err
				}
			}
			next.LabelNumber = &newLabel
		}
		next.Quantity = 0
		next.ItemCode = tagdomain.ItemCodeRetired
		next.RackLocation = nil
		next.Area = nil
		next.BatchNo = nil
		next.ManufacturingNo = nil
		next.FinishedGoodNo = nil
		next.CartonQuantity = nil
		next.Remark = tagdomain.TextOrNil(remark)
		next.UpdatedAt = tagdomain.NextUpdatedAt(current.UpdatedAt, s.clock.Now())
		next.UpdatedBy = actor

		if err := s.repo.Save(ctx, tx, &next); err != nil {
			return "", translateDuplicate(err, tagID)
		}

		saved, err = s.reload(ctx, tx, tagID)
		if err != nil {
			return "", err
		}
		if err := s.appendLog(ctx, tx, current, *saved, tagdomain.ActionReuse, saved.Remark); err != nil {
			return "", err
		}
		return tagdomain.ActionReuse, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag retired",
		zap.String("tag_id", tagID),
		zap.String("operation", operation),
		zap.String("actor", actor),
	)

	resp := tagdomain.ToResponse(*saved)
	return &resp, nil
}

package service

import (
	"context"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Update applies a partial field set to one tag. The change-log action is
// reclassified from the requested hint by what actually changed.
func (s *Service) Update(ctx context.Context, req tagdomain.UpdateRequest) (*tagdomain.Response, error) {
	tagID := tagdomain.NormalizeIdentifier(req.TagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}

	requested, err := tagdomain.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	switch requested {
	case tagdomain.ActionRegister, tagdomain.ActionAudit, tagdomain.ActionReuse, tagdomain.ActionDeregister:
		// These have their own operations with their own field rules.
		return nil, tagdomain.ErrInvalidAction
	}

	prev, err := parseVersion(req.PrevUpdatedAt)
	if err != nil {
		return nil, err
	}

	changes, err := normalizeUpdate(req)
	if err != nil {
		return nil, err
	}
	actor := s.actorOr(req.Actor)

	var (
		saved  *tagdomain.Tag
		action tagdomain.Action
	)
	err = s.mutate(ctx, "update", func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error) {
		current, err := s.lockTag(ctx, tx, "update", tagID, "")
		if err != nil {
			return "", err
		}
		if err := checkVersion(prev, current.UpdatedAt); err != nil {
			return "", err
		}

		next := s.applyUpdate(*current, changes)

		if err := s.checkLocation(next.Area, next.RackLocation); err != nil {
			return "", err
		}
		if next.LabelNumber != nil && !sameText(current.LabelNumber, next.LabelNumber) {
			if err := s.checkLabelFree(ctx, tx, *next.LabelNumber, tagID); err != nil {
				return "", err
			}
		}
		if next.EPC != nil && !sameText(current.EPC, next.EPC) {
			if err := s.checkEPCFree(ctx, tx, *next.EPC, tagID); err != nil {
				return "", err
			}
		}

		next.UpdatedAt = tagdomain.NextUpdatedAt(current.UpdatedAt, s.clock.Now())
		next.UpdatedBy = actor
		if err := s.repo.Save(ctx, tx, &next); err != nil {
			return "", translateDuplicate(err, tagID)
		}

		saved, err = s.reload(ctx, tx, tagID)
		if err != nil {
			return "", err
		}

		action = tagdomain.ClassifyAction(tagdomain.SnapshotOf(*current), tagdomain.SnapshotOf(*saved), requested)
		if err := s.appendLog(ctx, tx, current, *saved, action, req.Remark.Resolve(nil)); err != nil {
			return "", err
		}
		return action, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag updated",
		zap.String("tag_id", saved.TagID),
		zap.String("action", string(action)),
		zap.String("actor", actor),
	)

	resp := tagdomain.ToResponse(*saved)
	return &resp, nil
}

// normalizeUpdate trims and upper-cases identifier fields and rejects
// values no row may hold.
func normalizeUpdate(req tagdomain.UpdateRequest) (tagdomain.UpdateRequest, error) {
	out := req
	out.EPC = tagdomain.NormalizeText(req.EPC, true)
	out.LabelNumber = tagdomain.NormalizeText(req.LabelNumber, true)
	out.ManufacturingNo = tagdomain.NormalizeText(req.ManufacturingNo, true)
	out.FinishedGoodNo = tagdomain.NormalizeText(req.FinishedGoodNo, true)
	out.ItemCode = tagdomain.NormalizeText(req.ItemCode, true)
	out.BatchNo = tagdomain.NormalizeText(req.BatchNo, true)
	out.RackLocation = tagdomain.NormalizeText(req.RackLocation, true)
	out.Area = tagdomain.NormalizeText(req.Area, true)

	// item_code and quantity are NOT NULL.
	if out.ItemCode.IsClear() {
		return out, tagdomain.ErrInvalidItemCode
	}
	if out.Quantity.IsClear() {
		return out, tagdomain.ErrInvalidQuantity
	}
	if v, ok := out.Quantity.Value(); ok && v < 0 {
		return out, tagdomain.ErrInvalidQuantity
	}
	if v, ok := out.CartonQuantity.Value(); ok && v < 0 {
		return out, tagdomain.ErrInvalidCartonQuantity
	}
	return out, nil
}

func (s *Service) applyUpdate(current tagdomain.Tag, req tagdomain.UpdateRequest) tagdomain.Tag {
	next := current

	if s.tags.LegacyEPC {
		next.EPC = req.EPC.Resolve(current.EPC)
	} else {
		next.EPC = nil
	}
	next.LabelNumber = req.LabelNumber.Resolve(current.LabelNumber)
	next.ManufacturingNo = req.ManufacturingNo.Resolve(current.ManufacturingNo)
	next.FinishedGoodNo = req.FinishedGoodNo.Resolve(current.FinishedGoodNo)
	if v, ok := req.ItemCode.Value(); ok {
		next.ItemCode = v
	}
	next.BatchNo = req.BatchNo.Resolve(current.BatchNo)
	if v, ok := req.Quantity.Value(); ok {
		next.Quantity = v
	}
	next.CartonQuantity = req.CartonQuantity.Resolve(current.CartonQuantity)
	next.RackLocation = req.RackLocation.Resolve(current.RackLocation)
	next.Area = req.Area.Resolve(current.Area)
	next.Remark = req.Remark.Resolve(current.Remark)

	return next
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

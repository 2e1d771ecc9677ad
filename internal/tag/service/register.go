package service

import (
	"context"
	"fmt"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Register(ctx context.Context, req tagdomain.RegisterRequest) (*tagdomain.Response, error) {
	tagID := tagdomain.NormalizeIdentifier(req.TagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	label := tagdomain.NormalizeIdentifier(req.LabelNumber)
	if label == "" {
		return nil, tagdomain.ErrInvalidLabelNumber
	}
	itemCode := tagdomain.NormalizeIdentifier(req.ItemCode)
	if itemCode == "" {
		return nil, tagdomain.ErrInvalidItemCode
	}
	if req.Quantity == nil || *req.Quantity < 0 {
		return nil, tagdomain.ErrInvalidQuantity
	}
	if req.CartonQuantity != nil && *req.CartonQuantity < 0 {
		return nil, tagdomain.ErrInvalidCartonQuantity
	}

	tag := tagdomain.Tag{
		TagID:           tagID,
		LabelNumber:     &label,
		ManufacturingNo: tagdomain.NormalizeOptional(req.ManufacturingNo),
		FinishedGoodNo:  tagdomain.NormalizeOptional(req.FinishedGoodNo),
		ItemCode:        itemCode,
		BatchNo:         tagdomain.NormalizeOptional(req.BatchNo),
		Quantity:        *req.Quantity,
		CartonQuantity:  req.CartonQuantity,
		RackLocation:    tagdomain.NormalizeOptional(req.RackLocation),
		Area:            tagdomain.NormalizeOptional(req.Area),
		Remark:          req.Remark,
		UpdatedBy:       s.actorOr(req.Actor),
	}
	if s.tags.LegacyEPC {
		tag.EPC = tagdomain.NormalizeOptional(req.EPC)
	}
	if err := s.checkLocation(tag.Area, tag.RackLocation); err != nil {
		return nil, err
	}

	var saved *tagdomain.Tag
	err := s.mutate(ctx, "register", func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error) {
		existing, err := s.repo.FindByTagID(ctx, tx, tagID)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return "", fmt.Errorf("%w: tag %s already registered", tagdomain.ErrDuplicateTag, tagID)
		}
		if err := s.checkLabelFree(ctx, tx, label, ""); err != nil {
			return "", err
		}
		if tag.EPC != nil {
			if err := s.checkEPCFree(ctx, tx, *tag.EPC, ""); err != nil {
				return "", err
			}
		}

		tag.UpdatedAt = tagdomain.StoreTime(s.clock.Now())
		if err := s.repo.Insert(ctx, tx, &tag); err != nil {
			return "", translateDuplicate(err, tagID)
		}

		saved, err = s.reload(ctx, tx, tagID)
		if err != nil {
			return "", err
		}
		if err := s.appendLog(ctx, tx, nil, *saved, tagdomain.ActionRegister, saved.Remark); err != nil {
			return "", err
		}
		return tagdomain.ActionRegister, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag registered",
		zap.String("tag_id", saved.TagID),
		zap.String("item_code", saved.ItemCode),
		zap.String("actor", saved.UpdatedBy),
	)

	resp := tagdomain.ToResponse(*saved)
	return &resp, nil
}

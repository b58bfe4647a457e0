package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/inventory"
	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/queue"
	"github.com/iliyamo/unit-inventory/internal/repository"
)

// ActionEdit and ActionCreate label the non-guided mutations in events
// and metrics.
const (
	ActionEdit   = "edit"
	ActionCreate = "create"
)

// Actor identifies the staff member behind a mutation.
type Actor struct {
	ID   uint64
	Name string
	Role string
}

func (a Actor) label() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("staff:%d", a.ID)
}

// ActionInput carries optional field updates sent with a guided action.
// ExpectedUpdatedAt turns the write into a compare-and-set.
type ActionInput struct {
	BuyerName         *string    `json:"buyer_name" validate:"omitempty,max=255"`
	BuyerPhone        *string    `json:"buyer_phone" validate:"omitempty,max=32"`
	SalesEmployee     *string    `json:"sales_employee" validate:"omitempty,max=255"`
	AccountantName    *string    `json:"accountant_name" validate:"omitempty,max=255"`
	Notes             *string    `json:"notes" validate:"omitempty,max=2000"`
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at"`
}

// EditInput is a manager's direct edit.  Status overrides bypass the
// guided transition table but may not un-sell a unit the feed lists as
// sold.
type EditInput struct {
	Price                *float64   `json:"price" validate:"omitempty,gte=0"`
	Status               *string    `json:"status" validate:"omitempty,oneof=available reserved sold"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at"`
	BuyerName            *string    `json:"buyer_name" validate:"omitempty,max=255"`
	BuyerPhone           *string    `json:"buyer_phone" validate:"omitempty,max=32"`
	SalesEmployee        *string    `json:"sales_employee" validate:"omitempty,max=255"`
	AccountantName       *string    `json:"accountant_name" validate:"omitempty,max=255"`
	Notes                *string    `json:"notes" validate:"omitempty,max=2000"`
	ExpectedUpdatedAt    *time.Time `json:"expected_updated_at"`
}

// CreateUnitInput describes a new unit.  Units start available.
type CreateUnitInput struct {
	UnitNumber    int     `json:"unit_number" validate:"required,min=1"`
	BlockNumber   int     `json:"block_number" validate:"required,min=1,max=21"`
	AreaM2        float64 `json:"area_m2" validate:"required,gt=0"`
	Price         float64 `json:"price" validate:"gte=0"`
	IsResidential *bool   `json:"is_residential"`
	Notes         string  `json:"notes" validate:"max=2000"`
}

// ApplyAction performs a guided transition.  Legality is judged against
// the merged status, so a unit the feed lists as sold rejects every
// action.  Reserving or selling requires a buyer name, either sent or
// already on the unit.
func (s *InventoryService) ApplyAction(ctx context.Context, id string, action inventory.Action, in ActionInput, actor Actor) (UnitView, error) {
	if err := s.validateStruct(in); err != nil {
		s.record(string(action), "invalid")
		return UnitView{}, err
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UnitView{}, err
	}
	// a stale snapshot is still the best knowledge of what is sold
	snap, feedErr := s.soldUnits(ctx)
	if feedErr != nil {
		s.log.Warn("sales feed degraded during mutation", zap.String("unit_id", id), zap.Error(feedErr))
	}
	effective := inventory.MergeOne(current, snap.Units)

	now := s.now()
	tr, err := inventory.Apply(effective.Status, action, now, s.holdDuration)
	if err != nil {
		s.record(string(action), "rejected")
		return UnitView{}, err
	}

	patch := repository.UnitPatch{
		Status:               &tr.To,
		SetExpiry:            true,
		ReservationExpiresAt: tr.ExpiresAt,
		BuyerName:            in.BuyerName,
		BuyerPhone:           in.BuyerPhone,
		SalesEmployee:        in.SalesEmployee,
		AccountantName:       in.AccountantName,
		Notes:                in.Notes,
	}
	switch action {
	case inventory.ActionReserveTemporary, inventory.ActionReservePermanent, inventory.ActionSell:
		buyer := effective.BuyerName
		if in.BuyerName != nil {
			buyer = *in.BuyerName
		}
		if strings.TrimSpace(buyer) == "" {
			s.record(string(action), "invalid")
			return UnitView{}, invalidField("buyer_name", "validation_required", "is required")
		}
		if in.SalesEmployee == nil && effective.SalesEmployee == "" && actor.Name != "" {
			name := actor.Name
			patch.SalesEmployee = &name
		}
	case inventory.ActionCancelHold:
		// a released unit no longer belongs to the previous buyer
		if in.BuyerName == nil {
			empty := ""
			patch.BuyerName, patch.BuyerPhone = &empty, &empty
		}
	}

	updated, err := s.store.Update(ctx, id, patch, in.ExpectedUpdatedAt)
	if err != nil {
		s.recordFailure(string(action), err)
		return UnitView{}, err
	}
	s.afterMutation(ctx, string(action), &effective, updated, actor)
	return newView(inventory.MergeOne(updated, snap.Units), snap.Units, now), nil
}

// EditUnit applies a manager's direct edit.  The hold expiry is cleared
// whenever the resulting status is not reserved.
func (s *InventoryService) EditUnit(ctx context.Context, id string, in EditInput, actor Actor) (UnitView, error) {
	if err := s.validateStruct(in); err != nil {
		s.record(ActionEdit, "invalid")
		return UnitView{}, err
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UnitView{}, err
	}
	snap, feedErr := s.soldUnits(ctx)
	if feedErr != nil {
		s.log.Warn("sales feed degraded during edit", zap.String("unit_id", id), zap.Error(feedErr))
	}
	effective := inventory.MergeOne(current, snap.Units)

	patch := repository.UnitPatch{
		Price:          in.Price,
		BuyerName:      in.BuyerName,
		BuyerPhone:     in.BuyerPhone,
		SalesEmployee:  in.SalesEmployee,
		AccountantName: in.AccountantName,
		Notes:          in.Notes,
	}
	target := current.Status
	if in.Status != nil {
		st := model.UnitStatus(*in.Status)
		if st != model.StatusSold && inventory.IsFeedSold(current, snap.Units) {
			s.record(ActionEdit, "rejected")
			return UnitView{}, ErrFeedSoldLocked
		}
		target = st
		patch.Status = &st
	}
	if patch.Empty() && in.ReservationExpiresAt == nil {
		s.record(ActionEdit, "invalid")
		return UnitView{}, invalidField("body", "validation_empty", "no fields to update")
	}
	switch {
	case target != model.StatusReserved:
		patch.SetExpiry = true
	case in.ReservationExpiresAt != nil:
		exp := in.ReservationExpiresAt.UTC()
		patch.SetExpiry, patch.ReservationExpiresAt = true, &exp
	}

	updated, err := s.store.Update(ctx, id, patch, in.ExpectedUpdatedAt)
	if err != nil {
		s.recordFailure(ActionEdit, err)
		return UnitView{}, err
	}
	s.afterMutation(ctx, ActionEdit, &effective, updated, actor)
	return newView(inventory.MergeOne(updated, snap.Units), snap.Units, s.now()), nil
}

// CreateUnit inserts a new available unit.
func (s *InventoryService) CreateUnit(ctx context.Context, in CreateUnitInput, actor Actor) (UnitView, error) {
	if err := s.validateStruct(in); err != nil {
		s.record(ActionCreate, "invalid")
		return UnitView{}, err
	}
	u := model.Unit{
		UnitNumber:    in.UnitNumber,
		BlockNumber:   in.BlockNumber,
		AreaM2:        in.AreaM2,
		Price:         in.Price,
		Status:        model.StatusAvailable,
		Notes:         strings.TrimSpace(in.Notes),
		IsResidential: true,
	}
	if in.IsResidential != nil {
		u.IsResidential = *in.IsResidential
	}
	if err := s.store.Create(ctx, &u); err != nil {
		s.recordFailure(ActionCreate, err)
		return UnitView{}, err
	}
	s.afterMutation(ctx, ActionCreate, nil, u, actor)

	snap, _ := s.soldUnits(ctx)
	return newView(inventory.MergeOne(u, snap.Units), snap.Units, s.now()), nil
}

// afterMutation invalidates cached reads, publishes the change event in
// the background and logs the mutation.
func (s *InventoryService) afterMutation(ctx context.Context, action string, before *model.Unit, after model.Unit, actor Actor) {
	s.record(action, "ok")
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, CacheEntityUnits, CacheEntityStats); err != nil {
			s.log.Warn("cache invalidation failed", zap.Error(err))
		}
	}

	ev := queue.UnitChangedEvent{
		EventID:     uuid.NewString(),
		UnitID:      after.ID,
		UnitNumber:  after.UnitNumber,
		BlockNumber: after.BlockNumber,
		Action:      action,
		ToStatus:    string(after.Status),
		BuyerName:   after.BuyerName,
		Actor:       actor.label(),
		OccurredAt:  after.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if before != nil {
		ev.FromStatus = string(before.Status)
	}
	if after.ReservationExpiresAt != nil {
		ev.ExpiresAt = after.ReservationExpiresAt.UTC().Format(time.RFC3339)
	}

	s.log.Info("unit mutated",
		zap.String("unit_id", after.ID),
		zap.Int("unit_number", after.UnitNumber),
		zap.Int("block_number", after.BlockNumber),
		zap.String("action", action),
		zap.String("from", ev.FromStatus),
		zap.String("to", ev.ToStatus),
		zap.String("actor", ev.Actor))

	if s.events == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.PublishUnitChanged(pctx, ev); err != nil {
			s.log.Warn("unit event not published", zap.String("event_id", ev.EventID), zap.Error(err))
		}
	}()
}

func (s *InventoryService) record(action, outcome string) {
	if s.recorder != nil {
		s.recorder.MutationApplied(action, outcome)
	}
}

func (s *InventoryService) recordFailure(action string, err error) {
	switch {
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrDuplicateUnit):
		s.record(action, "conflict")
	case errors.Is(err, repository.ErrUnitNotFound):
		s.record(action, "not_found")
	default:
		s.log.Error("unit mutation failed", zap.String("action", action), zap.Error(err))
		s.record(action, "error")
	}
}

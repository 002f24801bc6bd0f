package mutation

import (
	"context"
	"errors"
	"time"

	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/money"
)

const setAvailabilityKey = "availability.set"

// ErrReservedStatus rejects manual writes of the status owned by the booking workflow.
var ErrReservedStatus = errors.New("mutation: booked status is managed by bookings")

// SetAvailabilityCommand is the host-facing calendar edit.
type SetAvailabilityCommand struct {
	PrincipalID   string      `validate:"required"`
	ResourceID    string      `validate:"required"`
	Dates         []time.Time `validate:"required,min=1,max=366"`
	Status        string      `validate:"required"`
	PriceOverride *int64      `validate:"omitempty,min=0"`
	// Debounce routes the edit through the coalescing front door.
	Debounce bool
}

func (SetAvailabilityCommand) Key() string { return setAvailabilityKey }

func (c SetAvailabilityCommand) Principal() string      { return c.PrincipalID }
func (c SetAvailabilityCommand) TargetResource() string { return c.ResourceID }

type SetAvailabilityHandler struct {
	Resources   domainresources.Repository
	Coordinator *Coordinator
	Debouncer   *Debouncer
}

func (h *SetAvailabilityHandler) Handle(ctx context.Context, cmd SetAvailabilityCommand) (dto.MutationResult, error) {
	status, err := domainavailability.ParseStatus(cmd.Status)
	if err != nil {
		return dto.MutationResult{}, err
	}
	if status == domainavailability.StatusBooked {
		return dto.MutationResult{}, ErrReservedStatus
	}
	resource, err := h.Resources.ByID(ctx, domainresources.ResourceID(cmd.ResourceID))
	if err != nil {
		return dto.MutationResult{}, err
	}
	req := BulkRequest{
		ResourceID: resource.ID,
		Kind:       resource.Kind,
		Dates:      cmd.Dates,
		Status:     status,
		Guard:      ExcludeStatus(domainavailability.StatusBooked),
		Reason:     "manual",
	}
	if cmd.PriceOverride != nil {
		override, err := money.New(*cmd.PriceOverride, resource.BasePrice.Currency)
		if err != nil {
			return dto.MutationResult{}, err
		}
		req.PriceOverride = &override
	}

	var res Result
	if cmd.Debounce && h.Debouncer != nil {
		sub := h.Debouncer.RequestApply(req)
		res, err = sub.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			sub.Cancel()
		}
	} else {
		res, err = h.Coordinator.ApplyBulk(ctx, req)
	}
	if err != nil {
		return dto.MutationResult{}, err
	}
	return mapResult(res), nil
}

func mapResult(res Result) dto.MutationResult {
	return dto.MutationResult{
		ResourceID: string(res.ResourceID),
		Status:     string(res.Status),
		Dates:      formatDates(res.Dates),
		Changed:    res.Changed,
	}
}

var _ commands.Handler[SetAvailabilityCommand, dto.MutationResult] = (*SetAvailabilityHandler)(nil)

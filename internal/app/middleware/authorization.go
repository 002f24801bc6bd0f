package middleware

import (
	"context"
	"errors"
	"fmt"

	"travelbook/internal/app/commands"
	"travelbook/internal/app/policies"
)

var ErrForbidden = errors.New("middleware: principal lacks access")

// ResourceWrite is implemented by commands that mutate a resource's calendar.
type ResourceWrite interface {
	Principal() string
	TargetResource() string
}

// BookingWrite is implemented by commands that act on an existing booking.
type BookingWrite interface {
	Principal() string
	TargetBooking() string
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// AccessAuthorizer asks the external identity collaborator before a write reaches the core.
type AccessAuthorizer struct {
	Access policies.AccessChecker
}

func (a AccessAuthorizer) Authorize(ctx context.Context, message any) error {
	if a.Access == nil {
		return nil
	}
	switch m := message.(type) {
	case ResourceWrite:
		ok, err := a.Access.CanWriteResource(ctx, m.Principal(), m.TargetResource())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: resource %s", ErrForbidden, m.TargetResource())
		}
	case BookingWrite:
		ok, err := a.Access.CanManageBooking(ctx, m.Principal(), m.TargetBooking())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %s", ErrForbidden, m.TargetBooking())
		}
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

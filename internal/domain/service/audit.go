package service

import (
	"context"

	"github.com/turtacn/quotagate/internal/domain/models"
)

// DenialPublisher ships denial events to an audit sink. Publishing is best
// effort: callers log and count failures but never change a verdict because of them.
type DenialPublisher interface {
	Publish(ctx context.Context, event models.DenialEvent) error
}

type noopDenialPublisher struct{}

// NewNoopDenialPublisher returns a publisher that drops every event.
func NewNoopDenialPublisher() DenialPublisher { return noopDenialPublisher{} }

func (noopDenialPublisher) Publish(context.Context, models.DenialEvent) error { return nil }

//Personal.AI order the ending

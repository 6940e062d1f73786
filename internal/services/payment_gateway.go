package services

import (
	"context"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

// PaymentGateway is the opaque charge capability. It returns the resulting
// payment status (paid or failed); errors are transport faults, not declined
// charges.
type PaymentGateway interface {
	Charge(ctx context.Context, sessionID int64, amount float64) (string, error)
}

// PlaceholderGateway approves every charge. It stands in until a real
// provider integration is wired behind the same interface.
type PlaceholderGateway struct{}

func NewPlaceholderGateway() *PlaceholderGateway {
	return &PlaceholderGateway{}
}

func (PlaceholderGateway) Charge(context.Context, int64, float64) (string, error) {
	return models.PaymentPaid, nil
}

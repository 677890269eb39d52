package api

import (
	"context"
	"errors"
	"log"

	"github.com/stretchr/testify/mock"
)

// ErrPaymentFailed is returned when the payment collaborator declines or
// cannot complete a charge.
var ErrPaymentFailed = errors.New("payment failed")

// tokensPerUnit is how many tokens one unit of currency buys.
const tokensPerUnit = 100

// PaymentProcessor charges real money for token purchases. The charge
// must succeed before any tokens are credited.
type PaymentProcessor interface {
	Charge(ctx context.Context, userId string, amount int) error
}

// DevPaymentProcessor approves every charge and logs it. Stands in until
// a real billing integration exists.
// TODO: replace with the billing service client once its API is stable.
type DevPaymentProcessor struct {
	Log *log.Logger
}

func (p *DevPaymentProcessor) Charge(_ context.Context, userId string, amount int) error {
	p.Log.Printf("dev payments: approved charge of %d for %q", amount, userId)
	return nil
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) Charge(ctx context.Context, userId string, amount int) error {
	args := m.Called(ctx, userId, amount)
	return args.Error(0)
}

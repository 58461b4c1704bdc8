package service

import (
	"context"
	"sync"
	"sync/atomic"

	"lucentpay-checkout/internal/payments"
)

type fakeProvider struct {
	price      *payments.PriceInfo
	priceErr   error
	priceGate  chan struct{}
	priceCalls atomic.Int32

	sessionErr error
	details    *payments.SessionDetails

	mu      sync.Mutex
	created []payments.CheckoutParams
}

func (f *fakeProvider) GetPrice(ctx context.Context, priceID string) (*payments.PriceInfo, error) {
	f.priceCalls.Add(1)
	if f.priceGate != nil {
		<-f.priceGate
	}
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	info := *f.price
	info.ID = priceID
	return &info, nil
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	f.mu.Lock()
	f.created = append(f.created, params)
	f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &payments.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1", Mode: params.Mode}, nil
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if f.details != nil {
		return f.details, nil
	}
	return &payments.SessionDetails{ID: sessionID, PaymentStatus: "paid", Mode: "payment"}, nil
}

func (f *fakeProvider) lastParams() payments.CheckoutParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

func recurringPrice() *payments.PriceInfo {
	amount := int64(9500)
	return &payments.PriceInfo{BillingMode: payments.BillingRecurring, Currency: "gbp", UnitAmount: &amount, Interval: "year", IntervalCount: 1}
}

func oneTimePrice() *payments.PriceInfo {
	return &payments.PriceInfo{BillingMode: payments.BillingOneTime, Currency: "gbp"}
}

package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"lucentpay-checkout/internal/metrics"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/pkg/logger"
)

type cachedPrice struct {
	key  string
	info payments.PriceInfo
}

// PriceResolver memoises the configured price record for the lifetime of the process.
// Concurrent cold lookups for the same identifier share a single gateway call.
type PriceResolver struct {
	provider payments.Provider
	timeout  time.Duration

	slot  atomic.Pointer[cachedPrice]
	group singleflight.Group
}

// NewPriceResolver constructs a resolver. A nil provider makes every call fail with ErrNotConfigured.
func NewPriceResolver(provider payments.Provider, timeout time.Duration) *PriceResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PriceResolver{provider: provider, timeout: timeout}
}

// Resolve returns the price record for priceID, querying the gateway only on the first call.
func (r *PriceResolver) Resolve(ctx context.Context, priceID string) (*payments.PriceInfo, error) {
	priceID = strings.TrimSpace(priceID)
	if r == nil || r.provider == nil || priceID == "" {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cached := r.slot.Load(); cached != nil && cached.key == priceID {
		metrics.PriceResolutions.WithLabelValues("cache_hit").Inc()
		return clonePrice(cached.info), nil
	}

	// The lookup outlives an impatient caller so the cache still fills.
	results := r.group.DoChan(priceID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		info, err := r.provider.GetPrice(lookupCtx, priceID)
		if err != nil {
			return nil, err
		}

		entry := &cachedPrice{key: priceID, info: *info}
		r.slot.Store(entry)

		logger.Info("Resolved checkout price", map[string]interface{}{
			"price_id":     priceID,
			"billing_mode": info.BillingMode,
			"currency":     info.Currency,
		})
		return entry, nil
	})

	select {
	case <-ctx.Done():
		metrics.PriceResolutions.WithLabelValues("error").Inc()
		return nil, payments.Unavailable(ctx.Err(), "price lookup abandoned by caller")
	case res := <-results:
		if res.Err != nil {
			metrics.PriceResolutions.WithLabelValues("error").Inc()
			logger.Error(res.Err, "Failed to resolve checkout price", map[string]interface{}{
				"price_id": priceID,
			})
			return nil, res.Err
		}
		metrics.PriceResolutions.WithLabelValues("lookup").Inc()
		return clonePrice(res.Val.(*cachedPrice).info), nil
	}
}

func clonePrice(info payments.PriceInfo) *payments.PriceInfo {
	out := info
	if info.UnitAmount != nil {
		amount := *info.UnitAmount
		out.UnitAmount = &amount
	}
	return &out
}

package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DefaultPreviewTTL bounds how long a preview result stays valid. Channel
// availability and fees change rarely, but not never.
const DefaultPreviewTTL = 5 * time.Minute

// CachedCollections wraps a Collections client and caches preview
// responses keyed by order reference and request payload. Initiate calls
// pass through and drop the matching preview entry on success; status
// queries always pass through.
type CachedCollections struct {
	next  Collections
	cache Cache
	ttl   time.Duration
}

func NewCachedCollections(next Collections, cache Cache, ttl time.Duration) *CachedCollections {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &CachedCollections{next: next, cache: cache, ttl: ttl}
}

func previewCacheKey(orderReference string, req any) string {
	data, err := json.Marshal(req)
	if err != nil {
		return "preview:" + orderReference
	}
	sum := md5.Sum(data)
	return "preview:" + orderReference + ":" + hex.EncodeToString(sum[:])
}

func (cc *CachedCollections) cachedPreview(ctx context.Context, key string) *PreviewResponse {
	val, ok := cc.cache.Get(ctx, key)
	if !ok {
		return nil
	}
	var resp PreviewResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil
	}
	resp.Success = true
	resp.StatusCode = 200
	return &resp
}

func (cc *CachedCollections) storePreview(ctx context.Context, key string, resp *PreviewResponse) {
	if resp == nil || !resp.Success {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	cc.cache.Put(ctx, key, string(data), cc.ttl)
}

func (cc *CachedCollections) PreviewUSSDPush(ctx context.Context, req PushRequest) (*PreviewResponse, error) {
	key := previewCacheKey(req.OrderReference, req)
	if resp := cc.cachedPreview(ctx, key); resp != nil {
		return resp, nil
	}
	resp, err := cc.next.PreviewUSSDPush(ctx, req)
	if err == nil {
		cc.storePreview(ctx, key, resp)
	}
	return resp, err
}

func (cc *CachedCollections) InitiateUSSDPush(ctx context.Context, req PushRequest) (*PaymentResponse, error) {
	resp, err := cc.next.InitiateUSSDPush(ctx, req)
	if err == nil && resp.Success {
		// The preview for an initiated payment is stale.
		cc.cache.Invalidate(ctx, previewCacheKey(req.OrderReference, req))
	}
	return resp, err
}

func (cc *CachedCollections) QueryPaymentStatus(ctx context.Context, orderReference string) (*PaymentStatusResponse, error) {
	return cc.next.QueryPaymentStatus(ctx, orderReference)
}

func (cc *CachedCollections) PreviewCardPayment(ctx context.Context, req CardPaymentRequest) (*PreviewResponse, error) {
	key := previewCacheKey(req.OrderReference, req)
	if resp := cc.cachedPreview(ctx, key); resp != nil {
		return resp, nil
	}
	resp, err := cc.next.PreviewCardPayment(ctx, req)
	if err == nil {
		cc.storePreview(ctx, key, resp)
	}
	return resp, err
}

func (cc *CachedCollections) InitiateCardPayment(ctx context.Context, req CardPaymentRequest) (*CardLinkResponse, error) {
	resp, err := cc.next.InitiateCardPayment(ctx, req)
	if err == nil && resp.Success {
		cc.cache.Invalidate(ctx, previewCacheKey(req.OrderReference, req))
	}
	return resp, err
}

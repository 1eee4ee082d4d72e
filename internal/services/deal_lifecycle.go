package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ezbirr/p2p-exchange/internal/infrastructure/kafka"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/observability"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/redis"
	"github.com/ezbirr/p2p-exchange/internal/models"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type CreateDealRequest struct {
	ListingID     int64   `json:"listing_id"`
	BuyerID       int64   `json:"buyer_id"`
	SellerID      int64   `json:"seller_id"`
	UsdtAmount    float64 `json:"usdt_amount"`
	EtbAmount     float64 `json:"etb_amount"`
	PaymentMethod string  `json:"payment_method"`
}

const dealCacheTTL = 5 * time.Minute

// confirmableStatuses: "escrowed" is accepted as an input synonym of
// "pending" here but is never produced by any transition.
var confirmableStatuses = []models.DealStatus{models.DealPending, models.DealEscrowed}

func (s *exchangeService) CreateDeal(ctx context.Context, req CreateDealRequest, meta models.RequestMeta) (*models.Deal, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "CreateDeal")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("listing_id", req.ListingID),
		attribute.Int64("buyer_id", req.BuyerID),
		attribute.Int64("seller_id", req.SellerID),
	)

	if req.UsdtAmount <= 0 || req.EtbAmount <= 0 {
		span.SetStatus(codes.Error, "non-positive amount")
		return nil, fmt.Errorf("%w: usdt_amount and etb_amount must be positive", pkgerrors.ErrInvalidInput)
	}

	listing, err := s.listingRepo.GetByID(ctx, req.ListingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing not found")
		return nil, err
	}
	if listing.Status != models.ListingActive {
		span.SetStatus(codes.Error, "listing not active")
		slog.Warn("deal attempted against inactive listing", "listing_id", listing.ID, "status", listing.Status)
		return nil, pkgerrors.ErrListingNotFound
	}

	if _, err := s.userRepo.GetByID(ctx, req.BuyerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "buyer not found")
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, req.SellerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seller not found")
		return nil, err
	}

	// Commission is computed once here and frozen into the row; later
	// changes to the configured rate never touch existing deals.
	commission := req.UsdtAmount * s.commissionPercent / 100

	deal := &models.Deal{
		ListingID:        req.ListingID,
		BuyerID:          req.BuyerID,
		SellerID:         req.SellerID,
		UsdtAmount:       req.UsdtAmount,
		EtbAmount:        req.EtbAmount,
		EscrowWallet:     s.escrowWallet,
		PaymentMethod:    req.PaymentMethod,
		CommissionAmount: commission,
		ExpiresAt:        time.Now().UTC().Add(models.DealExpiry),
	}

	// The unique index on deals.trade_code is the arbiter; on collision
	// re-roll and retry instead of check-then-act.
	for attempt := 0; attempt < maxTradeCodeAttempts; attempt++ {
		deal.TradeCode = generateTradeCode()
		entry := &models.LogEntry{
			UserID:    &deal.BuyerID,
			Action:    models.ActionDealCreated,
			Notes:     fmt.Sprintf("Created deal %s for %g USDT", deal.TradeCode, deal.UsdtAmount),
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		}
		err = s.dealRepo.Create(ctx, deal, entry)
		if err == nil {
			break
		}
		if !stderrors.Is(err, pkgerrors.ErrTradeCodeTaken) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "deal creation failed")
			slog.Error("failed to create deal", "listing_id", req.ListingID, "error", err)
			return nil, err
		}
		slog.Warn("trade code collision, re-rolling", "trade_code", deal.TradeCode, "attempt", attempt+1)
	}
	if err != nil {
		span.SetStatus(codes.Error, "trade code space exhausted")
		return nil, fmt.Errorf("%w: could not generate a unique trade code", pkgerrors.ErrInternal)
	}

	observability.DealTransitions.WithLabelValues(string(models.DealPending), "success").Inc()
	s.publishDealEvent("deal_created", deal)

	slog.Info("deal created",
		"deal_id", deal.ID,
		"trade_code", deal.TradeCode,
		"listing_id", deal.ListingID,
		"usdt_amount", deal.UsdtAmount,
		"commission", deal.CommissionAmount)
	return deal, nil
}

func (s *exchangeService) ConfirmPayment(ctx context.Context, tradeCode string, actingUserID int64, notes string, meta models.RequestMeta) (*models.Deal, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "ConfirmPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("trade_code", tradeCode),
		attribute.Int64("acting_user_id", actingUserID),
	)

	deal, err := s.dealRepo.GetByTradeCode(ctx, tradeCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deal not found")
		return nil, err
	}

	if deal.SellerID != actingUserID {
		span.SetStatus(codes.Error, "actor is not the seller")
		slog.Warn("payment confirmation by non-seller", "trade_code", tradeCode, "acting_user_id", actingUserID, "seller_id", deal.SellerID)
		return nil, fmt.Errorf("%w: only seller can confirm payment", pkgerrors.ErrForbidden)
	}
	if deal.Status != models.DealPending && deal.Status != models.DealEscrowed {
		span.SetStatus(codes.Error, "deal not confirmable")
		return nil, pkgerrors.ErrInvalidState
	}

	if notes == "" {
		notes = "Seller confirmed ETB payment received"
	}
	entry := &models.LogEntry{
		DealID:    &deal.ID,
		UserID:    &actingUserID,
		Action:    models.ActionPaymentConfirmed,
		Notes:     notes,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.dealRepo.UpdateStatus(ctx, deal.ID, confirmableStatuses, models.DealPaid, entry); err != nil {
		observability.DealTransitions.WithLabelValues(string(models.DealPaid), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
		return nil, err
	}
	deal.Status = models.DealPaid

	s.invalidateDealCache(ctx, tradeCode)
	observability.DealTransitions.WithLabelValues(string(models.DealPaid), "success").Inc()
	s.publishDealEvent("payment_confirmed", deal)

	slog.Info("payment confirmed", "trade_code", tradeCode, "deal_id", deal.ID, "seller_id", actingUserID)
	return deal, nil
}

func (s *exchangeService) ReleaseFunds(ctx context.Context, tradeCode, releaseSecret, notes string, meta models.RequestMeta) (*models.Deal, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "ReleaseFunds")
	defer span.End()
	span.SetAttributes(attribute.String("trade_code", tradeCode))

	// Secret is checked before the deal lookup: a bad secret always
	// fails Forbidden, regardless of deal status or existence.
	if subtle.ConstantTimeCompare([]byte(releaseSecret), []byte(s.releaseSecret)) != 1 {
		span.SetStatus(codes.Error, "invalid release secret")
		slog.Warn("funds release with invalid secret", "trade_code", tradeCode)
		return nil, fmt.Errorf("%w: invalid release secret", pkgerrors.ErrForbidden)
	}

	deal, err := s.dealRepo.GetByTradeCode(ctx, tradeCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deal not found")
		return nil, err
	}
	if deal.Status != models.DealPaid {
		span.SetStatus(codes.Error, "deal not in paid status")
		return nil, pkgerrors.ErrInvalidState
	}

	if notes == "" {
		notes = fmt.Sprintf("Admin released %g USDT to buyer", deal.UsdtAmount)
	}
	entry := &models.LogEntry{
		DealID:    &deal.ID,
		Action:    models.ActionFundsReleased,
		Notes:     notes,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.dealRepo.UpdateStatus(ctx, deal.ID, []models.DealStatus{models.DealPaid}, models.DealReleased, entry); err != nil {
		observability.DealTransitions.WithLabelValues(string(models.DealReleased), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
		return nil, err
	}
	deal.Status = models.DealReleased

	s.invalidateDealCache(ctx, tradeCode)
	observability.DealTransitions.WithLabelValues(string(models.DealReleased), "success").Inc()
	s.publishDealEvent("funds_released", deal)

	slog.Info("funds released", "trade_code", tradeCode, "deal_id", deal.ID, "usdt_amount", deal.UsdtAmount)
	return deal, nil
}

func (s *exchangeService) GetDeal(ctx context.Context, tradeCode string) (*models.DealDetail, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "GetDeal")
	defer span.End()

	cacheKey := dealCacheKey(tradeCode)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		var detail models.DealDetail
		if err := json.Unmarshal([]byte(cached), &detail); err == nil {
			return &detail, nil
		} else {
			slog.Error("failed to unmarshal cached deal", "trade_code", tradeCode, "error", err)
		}
	}

	deal, err := s.dealRepo.GetByTradeCode(ctx, tradeCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deal not found")
		return nil, err
	}

	detail := &models.DealDetail{Deal: *deal}
	if listing, err := s.listingRepo.GetByID(ctx, deal.ListingID); err == nil {
		detail.Listing = listing
	}
	if buyer, err := s.userRepo.GetByID(ctx, deal.BuyerID); err == nil {
		detail.Buyer = buyer
	}
	if seller, err := s.userRepo.GetByID(ctx, deal.SellerID); err == nil {
		detail.Seller = seller
	}

	if raw, err := json.Marshal(detail); err == nil {
		if err := s.redisClient.Set(ctx, cacheKey, string(raw), dealCacheTTL); err != nil {
			slog.Error("failed to cache deal", "trade_code", tradeCode, "error", err)
		}
	}
	return detail, nil
}

func (s *exchangeService) ListPendingDeals(ctx context.Context, status models.DealStatus, limit, offset int) ([]models.Deal, int, error) {
	if status == "" {
		status = models.DealPaid
	}
	return s.dealRepo.ListByStatus(ctx, status, limit, offset)
}

func (s *exchangeService) GetDealLogs(ctx context.Context, tradeCode string) ([]models.LogEntry, error) {
	deal, err := s.dealRepo.GetByTradeCode(ctx, tradeCode)
	if err != nil {
		return nil, err
	}
	return s.logRepo.ListByDeal(ctx, deal.ID)
}

func dealCacheKey(tradeCode string) string {
	return fmt.Sprintf("deal:%s", tradeCode)
}

func (s *exchangeService) invalidateDealCache(ctx context.Context, tradeCode string) {
	if err := s.redisClient.Del(ctx, dealCacheKey(tradeCode)); err != nil && !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to invalidate deal cache", "trade_code", tradeCode, "error", err)
	}
}

// publishDealEvent emits a lifecycle event asynchronously. The business
// effect is already committed; delivery failures are logged, not
// surfaced.
func (s *exchangeService) publishDealEvent(eventType string, deal *models.Deal) {
	event := map[string]interface{}{
		"event_type":  eventType,
		"deal_id":     deal.ID,
		"trade_code":  deal.TradeCode,
		"usdt_amount": deal.UsdtAmount,
		"etb_amount":  deal.EtbAmount,
		"status":      string(deal.Status),
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal deal event", "trade_code", deal.TradeCode, "error", err)
		return
	}

	tradeCode := deal.TradeCode
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.producer.Send(context.Background(), kafka.DealEventsTopic, tradeCode, eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send deal event after retries", "event_type", eventType, "trade_code", tradeCode)
	}()
}

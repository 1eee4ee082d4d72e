package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ezbirr/p2p-exchange/internal/config"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/kafka"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/redis"
	"github.com/ezbirr/p2p-exchange/internal/models"
	"github.com/ezbirr/p2p-exchange/internal/repository"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type ExchangeService interface {
	RegisterUser(ctx context.Context, name, telegramUsername, telegramID string, role models.UserRole, meta models.RequestMeta) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)

	CreateListing(ctx context.Context, listing *models.Listing, meta models.RequestMeta) (*models.Listing, error)
	UpdateListing(ctx context.Context, id int64, upd *models.ListingUpdate, meta models.RequestMeta) error
	ListListings(ctx context.Context, filter repository.ListingFilter) ([]models.Listing, int, error)

	CreateDeal(ctx context.Context, req CreateDealRequest, meta models.RequestMeta) (*models.Deal, error)
	ConfirmPayment(ctx context.Context, tradeCode string, actingUserID int64, notes string, meta models.RequestMeta) (*models.Deal, error)
	ReleaseFunds(ctx context.Context, tradeCode, releaseSecret, notes string, meta models.RequestMeta) (*models.Deal, error)
	GetDeal(ctx context.Context, tradeCode string) (*models.DealDetail, error)
	ListPendingDeals(ctx context.Context, status models.DealStatus, limit, offset int) ([]models.Deal, int, error)
	GetDealLogs(ctx context.Context, tradeCode string) ([]models.LogEntry, error)
}

type exchangeService struct {
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	dealRepo    repository.DealRepository
	logRepo     repository.LogRepository
	redisClient redis.RedisClient
	producer    kafka.EventProducer

	escrowWallet      string
	commissionPercent float64
	releaseSecret     string
}

func NewExchangeService(
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	dealRepo repository.DealRepository,
	logRepo repository.LogRepository,
	redisClient redis.RedisClient,
	producer kafka.EventProducer,
	cfg *config.Config,
) *exchangeService {
	return &exchangeService{
		userRepo:          userRepo,
		listingRepo:       listingRepo,
		dealRepo:          dealRepo,
		logRepo:           logRepo,
		redisClient:       redisClient,
		producer:          producer,
		escrowWallet:      cfg.EscrowWallet,
		commissionPercent: cfg.CommissionPercent,
		releaseSecret:     cfg.ReleaseSecret,
	}
}

func (s *exchangeService) RegisterUser(ctx context.Context, name, telegramUsername, telegramID string, role models.UserRole, meta models.RequestMeta) (*models.User, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "RegisterUser")
	defer span.End()

	if name == "" {
		span.SetStatus(codes.Error, "empty name")
		return nil, fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
	}
	if role == "" {
		role = models.RoleBoth
	}
	if role != models.RoleBuyer && role != models.RoleSeller && role != models.RoleBoth {
		span.SetStatus(codes.Error, "invalid role")
		return nil, fmt.Errorf("%w: invalid role %q", pkgerrors.ErrInvalidInput, role)
	}

	user := &models.User{
		Name:             name,
		TelegramUsername: telegramUsername,
		TelegramID:       telegramID,
		Role:             role,
	}
	entry := &models.LogEntry{
		Action:    models.ActionUserCreated,
		Notes:     fmt.Sprintf("Created user %s", name),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.userRepo.Create(ctx, user, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user", "name", name, "error", err)
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "name", name, "role", role)
	return user, nil
}

func (s *exchangeService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *exchangeService) CreateListing(ctx context.Context, listing *models.Listing, meta models.RequestMeta) (*models.Listing, error) {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "CreateListing")
	defer span.End()

	if listing.Amount <= 0 || listing.Rate <= 0 {
		span.SetStatus(codes.Error, "non-positive amount or rate")
		return nil, fmt.Errorf("%w: amount and rate must be positive", pkgerrors.ErrInvalidInput)
	}
	if listing.Direction != models.DirectionBuy && listing.Direction != models.DirectionSell {
		span.SetStatus(codes.Error, "invalid direction")
		return nil, fmt.Errorf("%w: type must be buy or sell", pkgerrors.ErrInvalidInput)
	}

	if _, err := s.userRepo.GetByID(ctx, listing.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "owner not found")
		slog.Error("listing owner not found", "user_id", listing.UserID, "error", err)
		return nil, err
	}

	entry := &models.LogEntry{
		UserID:    &listing.UserID,
		Action:    models.ActionListingCreated,
		Notes:     fmt.Sprintf("Created %s listing for %g USDT", listing.Direction, listing.Amount),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.listingRepo.Create(ctx, listing, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing creation failed")
		slog.Error("failed to create listing", "user_id", listing.UserID, "error", err)
		return nil, err
	}

	slog.Info("listing created", "listing_id", listing.ID, "user_id", listing.UserID, "type", listing.Direction, "amount", listing.Amount)
	return listing, nil
}

// UpdateListing applies a sparse update. Updates are accepted from any
// caller; the audit entry records the listing owner, not the actor.
func (s *exchangeService) UpdateListing(ctx context.Context, id int64, upd *models.ListingUpdate, meta models.RequestMeta) error {
	tracer := otel.Tracer("exchange-service")
	ctx, span := tracer.Start(ctx, "UpdateListing")
	defer span.End()

	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing not found")
		return err
	}

	entry := &models.LogEntry{
		UserID:    &listing.UserID,
		Action:    models.ActionListingUpdated,
		Notes:     fmt.Sprintf("Updated listing %d", id),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.listingRepo.Update(ctx, id, upd, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing update failed")
		slog.Error("failed to update listing", "listing_id", id, "error", err)
		return err
	}

	slog.Info("listing updated", "listing_id", id)
	return nil
}

func (s *exchangeService) ListListings(ctx context.Context, filter repository.ListingFilter) ([]models.Listing, int, error) {
	if filter.Status == "" {
		filter.Status = models.ListingActive
	}
	return s.listingRepo.List(ctx, filter)
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/repository"
	"settlement-service/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const accountCacheTTL = 5 * time.Minute

// AccountUsecase serves account opening and read-only balance lookups.
// Reads are cached in Redis; the settlement engine invalidates the cache
// whenever it moves a balance.
type AccountUsecase struct {
	accountRepo repository.AccountRepository
	refGen      *utils.ReferenceGenerator
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewAccountUsecase(
	accountRepo repository.AccountRepository,
	refGen *utils.ReferenceGenerator,
	redisClient *redis.Client,
	logger *zap.Logger,
) *AccountUsecase {
	return &AccountUsecase{
		accountRepo: accountRepo,
		refGen:      refGen,
		redisClient: redisClient,
		logger:      logger,
	}
}

// OpenAccount creates a zero-balance account for ownerName.
func (uc *AccountUsecase) OpenAccount(ctx context.Context, req *domain.OpenAccountRequest) (*domain.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account := &domain.Account{
		AccountNumber: uc.refGen.GenerateAccountNumber(),
		OwnerName:     req.OwnerName,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetByID fetches an account, serving from cache when possible.
func (uc *AccountUsecase) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	cacheKey := accountCacheKey(id)

	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var acc domain.Account
			if jsonErr := json.Unmarshal([]byte(val), &acc); jsonErr == nil {
				return &acc, nil
			}
		}
	}

	acc, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.redisClient != nil {
		if data, err := json.Marshal(acc); err == nil {
			_ = uc.redisClient.Set(ctx, cacheKey, data, accountCacheTTL).Err()
		}
	}

	return acc, nil
}

// GetByOwnerName fetches an account by its owner's name. Uncached; this is an
// occasional admin lookup, not a hot path.
func (uc *AccountUsecase) GetByOwnerName(ctx context.Context, ownerName string) (*domain.Account, error) {
	return uc.accountRepo.GetByOwnerName(ctx, ownerName)
}

// InvalidateCache drops the cached read for an account whose balance changed.
func (uc *AccountUsecase) InvalidateCache(ctx context.Context, id int64) {
	if uc.redisClient == nil {
		return
	}
	if err := uc.redisClient.Del(ctx, accountCacheKey(id)).Err(); err != nil {
		uc.logger.Warn("failed to invalidate account cache",
			zap.Int64("account_id", id),
			zap.Error(err))
	}
}

func accountCacheKey(id int64) string {
	return fmt.Sprintf("accounts:id:%d", id)
}

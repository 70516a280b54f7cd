package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/clock"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/ledger/domain"
	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	"github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	rewards config.RewardConfig
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		clock:   p.Clock,
		rewards: p.Cfg.Rewards,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Ensure(ctx context.Context, userID int64) (domain.Snapshot, error) {
	if userID <= 0 {
		return domain.Snapshot{}, domain.ErrInvalidUser
	}
	ctx = obscontext.WithUserID(ctx, strconv.FormatInt(userID, 10))

	var snapshot domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.ensure(ctx, tx, userID)
		if err != nil {
			return err
		}
		snapshot = toSnapshot(row, s.clock.Now())
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snapshot, nil
}

// ensure creates the row if needed and grants the welcome bonus to the single
// caller that wins the bonus_granted flip. The returned row is locked.
func (s *Service) ensure(ctx context.Context, tx *gorm.DB, userID int64) (*domain.Ledger, error) {
	created, err := s.repo.EnsureRow(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("ledger created", zap.Int64("user_id", userID))
	}

	won, err := s.repo.ClaimBonus(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.LockByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	if !won {
		return row, nil
	}

	applyWelcome(row, s.rewards.WelcomeTaps, s.rewards.WelcomeReward, s.rewards.WelcomeCap)
	if err := s.repo.Update(ctx, tx, row); err != nil {
		return nil, err
	}
	s.log.Info("welcome bonus granted",
		zap.Int64("user_id", userID),
		zap.Int64("free_taps", row.FreeTapsRemaining),
		zap.String("earn_cap_remaining", row.EarnCapRemaining.String()),
	)
	return row, nil
}

func (s *Service) Get(ctx context.Context, userID int64) (domain.Snapshot, error) {
	if userID <= 0 {
		return domain.Snapshot{}, domain.ErrInvalidUser
	}
	row, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if row == nil {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return toSnapshot(row, s.clock.Now()), nil
}

func (s *Service) Tap(ctx context.Context, userID int64) (domain.TapResult, error) {
	if userID <= 0 {
		return domain.TapResult{}, domain.ErrInvalidUser
	}
	ctx = obscontext.WithUserID(ctx, strconv.FormatInt(userID, 10))

	var result domain.TapResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.ensure(ctx, tx, userID)
		if err != nil {
			return err
		}

		tier, earned, remaining := applyTap(row, s.rewards.BaseTapReward, s.clock.Now())
		if err := s.repo.Update(ctx, tx, row); err != nil {
			return err
		}

		rate := s.rewards.BaseTapReward
		if tier == domain.TierPackage {
			rate = row.TapReward
		}
		result = domain.TapResult{
			Balance:          row.Balance,
			Earned:           earned,
			Tier:             tier,
			TapsRemaining:    remaining,
			RewardRate:       rate,
			EarnCapRemaining: row.EarnCapRemaining,
			FreeTaps:         row.FreeTapsRemaining,
			PackageTaps:      row.PackageTapsRemaining,
			TapsTotal:        row.TapsTotal,
		}
		return nil
	})
	if err != nil {
		return domain.TapResult{}, err
	}

	s.metrics.RecordTap(ctx, string(result.Tier))
	return result, nil
}

func (s *Service) CreditPackage(ctx context.Context, tx *gorm.DB, userID int64, pkg catalog.Package) (domain.Snapshot, error) {
	if userID <= 0 {
		return domain.Snapshot{}, domain.ErrInvalidUser
	}
	if tx == nil {
		return domain.Snapshot{}, errors.New("credit package requires a transaction")
	}

	if _, err := s.repo.EnsureRow(ctx, tx, userID); err != nil {
		return domain.Snapshot{}, err
	}
	row, err := s.repo.LockByUserID(ctx, tx, userID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if row == nil {
		return domain.Snapshot{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	applyPackage(row, pkg, now)
	if err := s.repo.Update(ctx, tx, row); err != nil {
		return domain.Snapshot{}, err
	}

	s.log.Info("package credited",
		zap.Int64("user_id", userID),
		zap.Int64("package_id", pkg.ID),
		zap.Int64("package_taps", row.PackageTapsRemaining),
		zap.Time("package_expires_at", *row.PackageExpiresAt),
	)
	return toSnapshot(row, now), nil
}

package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog",
	fx.Provide(Load),
)

type packageFile struct {
	ID       int64         `mapstructure:"id"`
	Name     string        `mapstructure:"name"`
	Price    string        `mapstructure:"price"`
	Taps     int64         `mapstructure:"taps"`
	Reward   string        `mapstructure:"reward"`
	Cap      string        `mapstructure:"cap"`
	Duration time.Duration `mapstructure:"duration"`
}

// Load reads packages.yml once at startup. A missing file falls back to
// the built-in catalog; a malformed one is a startup error. The file is
// not watched: the catalog never changes while the process runs.
func Load(cfg config.Config, log *zap.Logger) (*Catalog, error) {
	v := viper.New()
	if cfg.CatalogFile != "" {
		v.SetConfigFile(cfg.CatalogFile)
	} else {
		v.SetConfigName("packages")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/tapcoin")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Info("package catalog file not found, using defaults")
			return Default(), nil
		}
		return nil, fmt.Errorf("read package catalog: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Catalog, error) {
	var raw []packageFile
	if err := v.UnmarshalKey("packages", &raw); err != nil {
		return nil, fmt.Errorf("decode package catalog: %w", err)
	}

	packages := make([]Package, 0, len(raw))
	for _, item := range raw {
		price, err := parseAmount(item.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: package %d price: %v", ErrInvalidPackage, item.ID, err)
		}
		reward, err := parseAmount(item.Reward)
		if err != nil {
			return nil, fmt.Errorf("%w: package %d reward: %v", ErrInvalidPackage, item.ID, err)
		}
		capAmount, err := parseAmount(item.Cap)
		if err != nil {
			return nil, fmt.Errorf("%w: package %d cap: %v", ErrInvalidPackage, item.ID, err)
		}
		packages = append(packages, Package{
			ID:          item.ID,
			Name:        item.Name,
			Price:       price,
			TapsGranted: item.Taps,
			RewardRate:  reward,
			CapAmount:   capAmount,
			Duration:    item.Duration,
		})
	}

	return New(packages)
}

func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

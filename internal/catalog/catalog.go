package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCatalog     = errors.New("empty_catalog")
	ErrDuplicatePackage = errors.New("duplicate_package")
	ErrInvalidPackage   = errors.New("invalid_package_definition")
)

// DefaultDuration is how long a purchased package stays active.
const DefaultDuration = 30 * 24 * time.Hour

// Package is a purchasable bundle of taps, reward rate and earn cap.
type Package struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	TapsGranted int64           `json:"taps"`
	RewardRate  decimal.Decimal `json:"reward"`
	CapAmount   decimal.Decimal `json:"cap"`
	Duration    time.Duration   `json:"-"`
	DurationDay int             `json:"duration_days"`
}

// Catalog is the immutable set of packages. It is built once at startup
// and shared by reference; nothing mutates it afterwards.
type Catalog struct {
	packages map[int64]Package
	ordered  []Package
}

// New validates the packages and freezes them into a Catalog.
func New(packages []Package) (*Catalog, error) {
	if len(packages) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[int64]Package, len(packages))
	for _, pkg := range packages {
		pkg.Name = strings.TrimSpace(pkg.Name)
		if err := validate(pkg); err != nil {
			return nil, err
		}
		if _, exists := byID[pkg.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePackage, pkg.ID)
		}
		if pkg.Duration <= 0 {
			pkg.Duration = DefaultDuration
		}
		pkg.DurationDay = int(pkg.Duration / (24 * time.Hour))
		byID[pkg.ID] = pkg
	}

	ordered := make([]Package, 0, len(byID))
	for _, pkg := range byID {
		ordered = append(ordered, pkg)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Catalog{packages: byID, ordered: ordered}, nil
}

// Default returns the built-in three-tier catalog.
func Default() *Catalog {
	c, err := New([]Package{
		{
			ID:          1,
			Name:        "Starter",
			Price:       decimal.NewFromInt(10),
			TapsGranted: 100000,
			RewardRate:  decimal.RequireFromString("0.0002"),
			CapAmount:   decimal.NewFromInt(20),
		},
		{
			ID:          2,
			Name:        "Pro",
			Price:       decimal.NewFromInt(50),
			TapsGranted: 500000,
			RewardRate:  decimal.RequireFromString("0.00025"),
			CapAmount:   decimal.NewFromInt(125),
		},
		{
			ID:          3,
			Name:        "VIP",
			Price:       decimal.NewFromInt(100),
			TapsGranted: 1000000,
			RewardRate:  decimal.RequireFromString("0.0003"),
			CapAmount:   decimal.NewFromInt(300),
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a copy of the package with the given id.
func (c *Catalog) Get(id int64) (Package, bool) {
	if c == nil {
		return Package{}, false
	}
	pkg, ok := c.packages[id]
	return pkg, ok
}

// List returns the packages ordered by id. The slice is a copy.
func (c *Catalog) List() []Package {
	if c == nil {
		return nil
	}
	out := make([]Package, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func validate(pkg Package) error {
	switch {
	case pkg.ID <= 0:
		return fmt.Errorf("%w: id must be positive", ErrInvalidPackage)
	case pkg.Name == "":
		return fmt.Errorf("%w: package %d has no name", ErrInvalidPackage, pkg.ID)
	case !pkg.Price.IsPositive():
		return fmt.Errorf("%w: package %d price must be positive", ErrInvalidPackage, pkg.ID)
	case pkg.TapsGranted <= 0:
		return fmt.Errorf("%w: package %d taps must be positive", ErrInvalidPackage, pkg.ID)
	case !pkg.RewardRate.IsPositive():
		return fmt.Errorf("%w: package %d reward must be positive", ErrInvalidPackage, pkg.ID)
	case pkg.CapAmount.IsNegative():
		return fmt.Errorf("%w: package %d cap cannot be negative", ErrInvalidPackage, pkg.ID)
	}
	return nil
}

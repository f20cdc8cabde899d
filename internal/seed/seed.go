// Package seed fills an empty database with demo menu items, drivers
// parked around the restaurant, and staff.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

const kmPerDegreeLat = 111.32

type MenuCreator interface {
	Create(ctx context.Context, it menu.Item) (menu.Item, error)
}

type DriverCreator interface {
	Create(ctx context.Context, d driver.Driver) (driver.Driver, error)
}

type LocationUpdater interface {
	UpdateLocation(ctx context.Context, id string, p geo.Point) (driver.Driver, error)
}

type StaffCreator interface {
	Create(ctx context.Context, m staff.Member) (staff.Member, error)
}

type Options struct {
	MenuItems int
	Drivers   int
	Staff     int
	// Origin is the restaurant; drivers are scattered within SpreadKm.
	Origin   geo.Point
	SpreadKm float64
	// Seed makes runs reproducible; zero picks a random one.
	Seed int64
}

type Summary struct {
	MenuItems int `json:"menuItems"`
	Drivers   int `json:"drivers"`
	Staff     int `json:"staff"`
}

type Seeder struct {
	menu      MenuCreator
	drivers   DriverCreator
	locations LocationUpdater
	staff     StaffCreator
	opts      Options
	fake      faker.Faker
	logger    *zap.Logger
}

func New(m MenuCreator, d DriverCreator, loc LocationUpdater, s StaffCreator, opts Options, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SpreadKm <= 0 {
		opts.SpreadKm = 3
	}
	fake := faker.New()
	if opts.Seed != 0 {
		fake = faker.NewWithSeed(rand.NewSource(opts.Seed))
	}
	return &Seeder{menu: m, drivers: d, locations: loc, staff: s, opts: opts, fake: fake, logger: logger}
}

func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	for i := 0; i < s.opts.MenuItems; i++ {
		if _, err := s.menu.Create(ctx, s.menuItem()); err != nil {
			return sum, fmt.Errorf("seed menu item %d: %w", i, err)
		}
		sum.MenuItems++
	}

	for i := 0; i < s.opts.Drivers; i++ {
		d, err := s.drivers.Create(ctx, s.driver())
		if err != nil {
			return sum, fmt.Errorf("seed driver %d: %w", i, err)
		}
		if _, err := s.locations.UpdateLocation(ctx, d.ID, s.nearOrigin()); err != nil {
			return sum, fmt.Errorf("seed driver %s location: %w", d.ID, err)
		}
		sum.Drivers++
	}

	roles := []staff.Role{staff.RoleManager, staff.RoleWaiter, staff.RoleChef, staff.RoleCashier}
	for i := 0; i < s.opts.Staff; i++ {
		if _, err := s.staff.Create(ctx, s.member(i, roles[i%len(roles)])); err != nil {
			return sum, fmt.Errorf("seed staff %d: %w", i, err)
		}
		sum.Staff++
	}

	s.logger.Info("seed complete",
		zap.Int("menuItems", sum.MenuItems),
		zap.Int("drivers", sum.Drivers),
		zap.Int("staff", sum.Staff),
	)
	return sum, nil
}

var dishes = map[string][]string{
	"starters": {"Samosa", "Bhajia", "Mshikaki", "Chicken Wings", "Tomato Soup"},
	"mains":    {"Pilau", "Nyama Choma", "Ugali and Sukuma", "Chicken Biryani", "Fish Curry", "Beef Burger"},
	"desserts": {"Mandazi", "Fruit Salad", "Chocolate Cake", "Ice Cream"},
	"drinks":   {"Chai", "Passion Juice", "Mango Smoothie", "Dawa", "Soda"},
}

var categories = []string{"starters", "mains", "desserts", "drinks"}

func (s *Seeder) menuItem() menu.Item {
	category := s.fake.RandomStringElement(categories)
	price := decimal.NewFromFloat(s.fake.Float64(2, 2, 25)).Round(2)
	if !price.IsPositive() {
		price = decimal.NewFromInt(1)
	}
	return menu.Item{
		Name:        s.fake.RandomStringElement(dishes[category]),
		Description: s.fake.Lorem().Sentence(8),
		Category:    category,
		Price:       price,
		Available:   s.fake.IntBetween(0, 9) > 0,
	}
}

var vehicles = []string{"motorbike", "bicycle", "car", "scooter"}

func (s *Seeder) driver() driver.Driver {
	return driver.Driver{
		Name:    s.fake.Person().Name(),
		Phone:   s.fake.Phone().Number(),
		Vehicle: s.fake.RandomStringElement(vehicles),
	}
}

// nearOrigin picks a point inside a square of half-width SpreadKm/√2
// around the origin, which keeps it within SpreadKm.
func (s *Seeder) nearOrigin() geo.Point {
	half := s.opts.SpreadKm / math.Sqrt2
	dx := s.unit() * half
	dy := s.unit() * half

	lat := s.opts.Origin.Lat + dy/kmPerDegreeLat
	cos := math.Cos(s.opts.Origin.Lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	lng := s.opts.Origin.Lng + dx/(kmPerDegreeLat*cos)
	return geo.Point{Lat: clamp(lat, -90, 90), Lng: clamp(lng, -180, 180)}
}

// unit returns a value in [-1, 1].
func (s *Seeder) unit() float64 {
	return float64(s.fake.IntBetween(-1000, 1000)) / 1000
}

func (s *Seeder) member(i int, role staff.Role) staff.Member {
	name := s.fake.Person().Name()
	slug := strings.ToLower(strings.Join(strings.Fields(name), "."))
	return staff.Member{
		Name:  name,
		Email: fmt.Sprintf("%s.%d@restaurant.test", slug, i),
		Phone: s.fake.Phone().Number(),
		Role:  role,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

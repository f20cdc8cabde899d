package main

import (
	"github.com/spf13/cobra"

	"github.com/mark-4989/restaurant-service-go/internal/db"
	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/seed"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo menu items, drivers and staff",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		menuItems, _ := flags.GetInt("menu-items")
		drivers, _ := flags.GetInt("drivers")
		members, _ := flags.GetInt("staff")
		spread, _ := flags.GetFloat64("spread-km")
		seedValue, _ := flags.GetInt64("seed")

		ctx := cmd.Context()
		pool, err := db.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if cfg.Database.RunMigrations {
			if err := db.RunMigrations(cfg.Database.DSN, logger); err != nil {
				return err
			}
		}

		driverRepo := driver.NewPostgresRepository(pool)
		s := seed.New(
			menu.NewService(menu.NewPostgresRepository(pool)),
			driver.NewService(driverRepo),
			driverRepo,
			staff.NewService(staff.NewPostgresRepository(pool)),
			seed.Options{
				MenuItems: menuItems,
				Drivers:   drivers,
				Staff:     members,
				Origin:    geo.Point{Lat: cfg.Dispatch.OriginLat, Lng: cfg.Dispatch.OriginLng},
				SpreadKm:  spread,
				Seed:      seedValue,
			},
			logger.Named("seed"),
		)
		_, err = s.Run(ctx)
		return err
	},
}

func init() {
	seedCmd.Flags().Int("menu-items", 20, "number of menu items")
	seedCmd.Flags().Int("drivers", 8, "number of drivers")
	seedCmd.Flags().Int("staff", 8, "number of staff members")
	seedCmd.Flags().Float64("spread-km", 3, "radius around the dispatch origin for driver locations")
	seedCmd.Flags().Int64("seed", 0, "random seed, 0 for a random run")
}

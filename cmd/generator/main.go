package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"shoreline/internal/auth"
	"shoreline/internal/backend"
	"shoreline/internal/config"
	"shoreline/internal/logger"
	"shoreline/internal/models"
	"shoreline/internal/seatmap"
	"shoreline/internal/service"
)

var (
	busID  = flag.String("bus", "", "Regenerate the seat map of this bus (empty = print only)")
	rows   = flag.Int("rows", 10, "Number of rows")
	perRow = flag.Int("per-row", 4, "Seats per row, the last row gets one extra")
	dryRun = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")
	slog.Info("Starting seat map generator...", "rows", *rows, "per_row", *perRow)

	seats, err := seatmap.Generate(*rows, *perRow)
	if err != nil {
		logger.Fatal("Invalid layout", "error", err)
	}
	printLayout(os.Stdout, seats)

	if *busID == "" {
		return
	}
	if *dryRun {
		slog.Info("[DRY RUN] Would regenerate seats for bus", "bus_id", *busID, "total_seats", len(seats))
		return
	}

	ctx := context.Background()
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open backends", "error", err)
	}

	err = regenerate(ctx, b.Services.Buses, *busID, *rows, *perRow)
	b.Close()
	if err != nil {
		logger.Fatal("Failed to regenerate seats", "bus_id", *busID, "error", err)
	}
}

// regenerate runs as an admin; the service still refuses buses with bookings
func regenerate(ctx context.Context, buses *service.BusService, id string, rowCount, seatsPerRow int) error {
	admin := service.Actor{UID: "seat-generator", Role: auth.RoleAdmin}
	bus, err := buses.Reconfigure(ctx, admin, id, &models.UpdateLayoutRequest{
		RowCount:    rowCount,
		SeatsPerRow: seatsPerRow,
	})
	if err != nil {
		return err
	}
	slog.Info("Generated seats for bus", "bus_id", bus.ID, "event_id", bus.EventID, "total_seats", bus.Summary.Total)
	return nil
}

// printLayout draws one line per row with the seat numbers left to right
func printLayout(w io.Writer, seats []seatmap.Seat) {
	var line []string
	row := 0
	flush := func() {
		if len(line) > 0 {
			fmt.Fprintf(w, "row %3d: %s\n", row, strings.Join(line, " "))
		}
		line = line[:0]
	}
	for _, s := range seats {
		if s.Row != row {
			flush()
			row = s.Row
		}
		line = append(line, fmt.Sprintf("%3d", s.SeatNumber))
	}
	flush()
	fmt.Fprintf(w, "capacity: %d\n", len(seats))
}

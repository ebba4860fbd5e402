// Package seatmap builds and mutates the embedded seat list of a bus.
//
// Seats are numbered serpentine: odd rows count up left to right, even rows
// count down, so numbers run down one side of the bus and back up the other.
// The last row always carries one extra seat.
package seatmap

import (
	"errors"
	"fmt"
)

type SeatStatus string

const (
	StatusAvailable SeatStatus = "available"
	StatusBooked    SeatStatus = "booked"
)

var (
	ErrInvalidConfiguration = errors.New("invalid bus configuration")
	ErrSeatNotFound         = errors.New("seat not found")
	ErrSeatTaken            = errors.New("seat is already booked")
	ErrSeatNotBooked        = errors.New("seat is not booked")
	ErrNotOccupant          = errors.New("seat is booked by another user")
	ErrAlreadySeated        = errors.New("user already holds a seat on this bus")
)

// Seat is one entry of a bus seat list. ID stays nil until the backing store
// assigns one; OccupantID is set only while the seat is booked.
type Seat struct {
	ID         *string    `json:"seatId"`
	SeatNumber int        `json:"seatNumber"`
	Row        int        `json:"row"`
	Position   int        `json:"position"`
	Status     SeatStatus `json:"status"`
	OccupantID *string    `json:"occupantId"`
}

// Layout limits. The largest bus holds MaxRows*MaxSeatsPerRow+1 seats.
const (
	MaxRows        = 100
	MaxSeatsPerRow = 20
)

// Capacity returns the number of seats Generate produces for the layout.
// The result is only meaningful for a layout that passes Validate.
func Capacity(rowCount, seatsPerRow int) int {
	return rowCount*seatsPerRow + 1
}

// Validate checks a layout without generating it.
func Validate(rowCount, seatsPerRow int) error {
	if rowCount < 1 || seatsPerRow < 1 {
		return fmt.Errorf("%w: rowCount=%d seatsPerRow=%d, both must be >= 1",
			ErrInvalidConfiguration, rowCount, seatsPerRow)
	}
	if rowCount > MaxRows || seatsPerRow > MaxSeatsPerRow {
		return fmt.Errorf("%w: rowCount=%d seatsPerRow=%d, limits are %d rows of %d seats",
			ErrInvalidConfiguration, rowCount, seatsPerRow, MaxRows, MaxSeatsPerRow)
	}
	return nil
}

// Generate returns the seats of a bus in row-major order.
//
// Row r covers the block of numbers starting at (r-1)*seatsPerRow+1. Odd rows
// assign the block ascending left to right, even rows descending. The last row
// holds seatsPerRow+1 seats, so its block ends at rowCount*seatsPerRow+1 and
// the numbers form the contiguous range 1..Capacity.
func Generate(rowCount, seatsPerRow int) ([]Seat, error) {
	if err := Validate(rowCount, seatsPerRow); err != nil {
		return nil, err
	}

	seats := make([]Seat, 0, Capacity(rowCount, seatsPerRow))
	for r := 1; r <= rowCount; r++ {
		inRow := seatsPerRow
		if r == rowCount {
			inRow++
		}
		first := (r-1)*seatsPerRow + 1

		for i := 0; i < inRow; i++ {
			number := first + i
			if r%2 == 0 {
				number = first + inRow - 1 - i
			}
			seats = append(seats, Seat{
				SeatNumber: number,
				Row:        r,
				Position:   i + 1,
				Status:     StatusAvailable,
			})
		}
	}

	return seats, nil
}

// Find returns the index of the seat with the given number.
func Find(seats []Seat, number int) (int, bool) {
	for i := range seats {
		if seats[i].SeatNumber == number {
			return i, true
		}
	}
	return -1, false
}

// Book marks a seat as booked by occupantID. A user may hold at most one seat
// per bus.
func Book(seats []Seat, number int, occupantID string) error {
	idx, ok := Find(seats, number)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSeatNotFound, number)
	}
	if seats[idx].Status == StatusBooked {
		return fmt.Errorf("%w: %d", ErrSeatTaken, number)
	}
	if held, ok := HeldBy(seats, occupantID); ok {
		return fmt.Errorf("%w: seat %d", ErrAlreadySeated, held)
	}

	occupant := occupantID
	seats[idx].Status = StatusBooked
	seats[idx].OccupantID = &occupant
	return nil
}

// Release frees a booked seat. When requireOccupant is set the seat must be
// held by occupantID.
func Release(seats []Seat, number int, occupantID string, requireOccupant bool) error {
	idx, ok := Find(seats, number)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSeatNotFound, number)
	}
	seat := &seats[idx]
	if seat.Status != StatusBooked {
		return fmt.Errorf("%w: %d", ErrSeatNotBooked, number)
	}
	if requireOccupant && (seat.OccupantID == nil || *seat.OccupantID != occupantID) {
		return ErrNotOccupant
	}

	seat.Status = StatusAvailable
	seat.OccupantID = nil
	return nil
}

// HeldBy returns the number of the seat booked by occupantID, if any.
func HeldBy(seats []Seat, occupantID string) (int, bool) {
	for _, s := range seats {
		if s.Status == StatusBooked && s.OccupantID != nil && *s.OccupantID == occupantID {
			return s.SeatNumber, true
		}
	}
	return 0, false
}

// Summary counts seats per status.
type Summary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Booked    int `json:"booked"`
}

func Summarize(seats []Seat) Summary {
	s := Summary{Total: len(seats)}
	for _, seat := range seats {
		if seat.Status == StatusBooked {
			s.Booked++
		} else {
			s.Available++
		}
	}
	return s
}

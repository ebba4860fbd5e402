package seatmap

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func numbers(seats []Seat) []int {
	out := make([]int, len(seats))
	for i, s := range seats {
		out[i] = s.SeatNumber
	}
	return out
}

func TestGenerate_TwoRowsOfFour(t *testing.T) {
	seats, err := Generate(2, 4)
	require.NoError(t, err)
	require.Len(t, seats, 9)

	// row 1 ascending, last row (even) descending with the extra seat
	assert.Equal(t, []int{1, 2, 3, 4, 9, 8, 7, 6, 5}, numbers(seats))

	seen := make(map[int]bool)
	for _, s := range seats {
		assert.False(t, seen[s.SeatNumber], "duplicate seat %d", s.SeatNumber)
		seen[s.SeatNumber] = true
	}
	for n := 1; n <= 9; n++ {
		assert.True(t, seen[n], "missing seat %d", n)
	}

	assert.Equal(t, 1, seats[0].Row)
	assert.Equal(t, 2, seats[4].Row)
	assert.Equal(t, 5, seats[8].Position)
}

func TestGenerate_OddLastRow(t *testing.T) {
	seats, err := Generate(3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 8, 7, 6, 5, 9, 10, 11, 12, 13}, numbers(seats))
}

func TestGenerate_SingleRow(t *testing.T) {
	seats, err := Generate(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, numbers(seats))
}

func TestGenerate_SeatDefaults(t *testing.T) {
	seats, err := Generate(4, 5)
	require.NoError(t, err)
	for _, s := range seats {
		assert.Nil(t, s.ID)
		assert.Nil(t, s.OccupantID)
		assert.Equal(t, StatusAvailable, s.Status)
	}
}

func TestGenerate_InvalidConfiguration(t *testing.T) {
	cases := []struct {
		rows, perRow int
	}{
		{0, 4},
		{4, 0},
		{-1, 4},
		{3, -2},
		{0, 0},
	}
	for _, tc := range cases {
		seats, err := Generate(tc.rows, tc.perRow)
		assert.Nil(t, seats)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "rows=%d perRow=%d", tc.rows, tc.perRow)
	}
}

func TestGenerate_RejectsOversizedLayouts(t *testing.T) {
	cases := []struct {
		rows, perRow int
	}{
		{MaxRows + 1, 1},
		{1, MaxSeatsPerRow + 1},
		{1_000_000, 1_000_000},
		{math.MaxInt / 2, 3},
		{math.MaxInt, math.MaxInt},
	}
	for _, tc := range cases {
		var seats []Seat
		var err error
		require.NotPanics(t, func() { seats, err = Generate(tc.rows, tc.perRow) })
		assert.Nil(t, seats)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "rows=%d perRow=%d", tc.rows, tc.perRow)
	}

	seats, err := Generate(MaxRows, MaxSeatsPerRow)
	require.NoError(t, err)
	assert.Len(t, seats, MaxRows*MaxSeatsPerRow+1)
}

func TestGenerate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(1, 40).Draw(t, "rows")
		perRow := rapid.IntRange(1, 8).Draw(t, "perRow")

		seats, err := Generate(rows, perRow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := rows*perRow + 1
		if len(seats) != want {
			t.Fatalf("got %d seats, want %d", len(seats), want)
		}

		seen := make(map[int]bool, want)
		for _, s := range seats {
			if s.SeatNumber < 1 || s.SeatNumber > want {
				t.Fatalf("seat number %d out of range 1..%d", s.SeatNumber, want)
			}
			if seen[s.SeatNumber] {
				t.Fatalf("duplicate seat number %d", s.SeatNumber)
			}
			seen[s.SeatNumber] = true
		}

		again, _ := Generate(rows, perRow)
		for i := range seats {
			if seats[i].SeatNumber != again[i].SeatNumber {
				t.Fatalf("non-deterministic numbering at index %d", i)
			}
		}
	})
}

func TestGenerate_RejectsNonPositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(-50, 50).Draw(t, "n")
		if _, err := Generate(0, n); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("Generate(0, %d) err = %v", n, err)
		}
		if _, err := Generate(n, 0); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("Generate(%d, 0) err = %v", n, err)
		}
	})
}

func TestBookAndRelease(t *testing.T) {
	seats, err := Generate(2, 4)
	require.NoError(t, err)

	require.NoError(t, Book(seats, 9, "u1"))
	idx, ok := Find(seats, 9)
	require.True(t, ok)
	assert.Equal(t, StatusBooked, seats[idx].Status)
	require.NotNil(t, seats[idx].OccupantID)
	assert.Equal(t, "u1", *seats[idx].OccupantID)

	assert.ErrorIs(t, Book(seats, 9, "u2"), ErrSeatTaken)
	assert.ErrorIs(t, Book(seats, 3, "u1"), ErrAlreadySeated)
	assert.ErrorIs(t, Book(seats, 42, "u2"), ErrSeatNotFound)

	assert.ErrorIs(t, Release(seats, 9, "u2", true), ErrNotOccupant)
	assert.ErrorIs(t, Release(seats, 1, "u1", true), ErrSeatNotBooked)
	require.NoError(t, Release(seats, 9, "u1", true))
	assert.Equal(t, StatusAvailable, seats[idx].Status)
	assert.Nil(t, seats[idx].OccupantID)

	require.NoError(t, Book(seats, 2, "u2"))
	require.NoError(t, Release(seats, 2, "admin", false))

	assert.Len(t, seats, 9)
}

func TestSummarize(t *testing.T) {
	seats, _ := Generate(3, 4)
	require.NoError(t, Book(seats, 1, "a"))
	require.NoError(t, Book(seats, 13, "b"))

	s := Summarize(seats)
	assert.Equal(t, Summary{Total: 13, Available: 11, Booked: 2}, s)
}

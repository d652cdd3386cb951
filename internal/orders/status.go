package orders

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrUnknownStatus     = errors.New("orders: unknown status")
	ErrInvalidTransition = errors.New("orders: invalid status transition")
	ErrOrderClosed       = errors.New("orders: order is closed")
)

var statusRank = map[Status]int{
	StatusNew:        0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusCompleted:  3,
}

func Statuses() []Status {
	return []Status{StatusNew, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses() {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Closed orders can no longer change price or status.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition allows forward moves along new → processing → shipped →
// completed, and cancelling any open order.
func CanTransition(from, to Status) bool {
	if from.Closed() || from == to {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	return ok && tr > fr
}

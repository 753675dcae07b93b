package helpdesk

import (
	"context"
	"fmt"
	"math"
	"time"

	"helpdesk/internal/model"
)

// Statistics periods accepted by StatisticsService.Compute.
const (
	PeriodTotal   = "total"
	PeriodDaily   = "diario"
	PeriodWeekly  = "semanal"
	PeriodMonthly = "mensal"
)

const dateLayout = "2006-01-02"

// TicketCounter reads ticket aggregates from the store.
type TicketCounter interface {
	TicketCounts(ctx context.Context, r model.DateRange) (*model.TicketCounts, error)
}

// StatisticsService computes the dashboard figures.
type StatisticsService struct {
	counter TicketCounter
	retry   RetryPolicy
	clock   Clock
}

// NewStatisticsService creates a StatisticsService. Store reads go through retry.
func NewStatisticsService(counter TicketCounter, retry RetryPolicy, clock Clock) *StatisticsService {
	return &StatisticsService{counter: counter, retry: retry, clock: clock}
}

// Compute returns the statistics for period, one of the Period constants.
// An empty period means PeriodTotal.
func (s *StatisticsService) Compute(ctx context.Context, period string) (*model.Statistics, error) {
	if period == "" {
		period = PeriodTotal
	}

	now := s.clock.Now()
	today := now.Format(dateLayout)

	var (
		r    model.DateRange
		days int
	)
	switch period {
	case PeriodTotal:
	case PeriodDaily:
		r = model.DateRange{From: today, To: today}
		days = 1
	case PeriodWeekly:
		r = model.DateRange{From: now.AddDate(0, 0, -7).Format(dateLayout), To: today}
		days = 7
	case PeriodMonthly:
		r = model.DateRange{From: now.AddDate(0, 0, 1-now.Day()).Format(dateLayout), To: today}
		days = now.Day()
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	var counts *model.TicketCounts
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		counts, err = s.counter.TicketCounts(ctx, r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading ticket counts: %w", err)
	}

	if period == PeriodTotal {
		days = spanDays(counts.FirstOpened, counts.LastOpened)
	}

	stats := &model.Statistics{
		TotalCustomers: counts.Customers,
		OpenTickets:    counts.Open,
		ClosedTickets:  counts.Closed,
		LatestTickets:  counts.Latest,
	}
	if stats.LatestTickets == nil {
		stats.LatestTickets = []model.TicketSummary{}
	}
	if days > 0 {
		stats.DailyAverage = math.Round(float64(counts.Total)/float64(days)*10) / 10
	}
	return stats, nil
}

// spanDays returns the inclusive number of days between two dates, at least
// one, or zero when either date is missing or malformed.
func spanDays(first, last string) int {
	if first == "" || last == "" {
		return 0
	}
	from, err := time.Parse(dateLayout, first)
	if err != nil {
		return 0
	}
	to, err := time.Parse(dateLayout, last)
	if err != nil {
		return 0
	}
	return max(1, int(to.Sub(from).Hours()/24)+1)
}

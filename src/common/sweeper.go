package common

import (
	"errors"
	"log"

	"pups/src/lifecycle"
)

// SweepReport is the aggregate outcome of one sweep pass.
type SweepReport struct {
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweeper reverts overdue pending deposits back to available inventory.
// The overdue scan is a snapshot; each Expire re-checks its guards inside
// its own transaction, so a listing paid or cancelled after the scan is
// skipped rather than forced back.
type Sweeper struct {
	svc *lifecycle.Service
}

func NewSweeper(svc *lifecycle.Service) *Sweeper {
	return &Sweeper{svc: svc}
}

// Run applies Expire to every listing with an overdue pending deposit.
// One listing failing never aborts the batch. Re-running with no newly
// overdue listings reports Expired=0.
func (s *Sweeper) Run() (SweepReport, error) {
	var report SweepReport
	now := s.svc.Clock().Now()
	ids, err := s.svc.Store().FindOverduePending(now)
	if err != nil {
		log.Printf("[sweep] overdue scan failed: %s\n", err.Error())
		return report, err
	}
	for _, id := range ids {
		err := s.svc.Expire(id)
		switch {
		case err == nil:
			report.Expired++
		case errors.Is(err, lifecycle.ErrNotPending),
			errors.Is(err, lifecycle.ErrDeadlineNotReached),
			errors.Is(err, lifecycle.ErrNotFound):
			// Changed between scan and expire; nothing to do.
			report.Skipped++
		default:
			log.Printf("[sweep] expire failed for listing %d: %s\n", id, err.Error())
			report.Failed++
		}
	}
	if report.Expired > 0 || report.Failed > 0 {
		log.Printf("[sweep] done: expired=%d skipped=%d failed=%d\n", report.Expired, report.Skipped, report.Failed)
	}
	return report, nil
}

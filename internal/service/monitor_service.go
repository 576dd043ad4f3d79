package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
)

// MonitorService assembles the live exam monitor snapshot.
type MonitorService struct {
	reader MonitorReader
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(reader MonitorReader) *MonitorService {
	return &MonitorService{reader: reader}
}

// Snapshot returns attempt counts per status together with answered and
// event counts per student. The three reads run concurrently; status counts
// and answered counts are required, event counts are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*model.MonitorSnapshot, error) {
	snap := &model.MonitorSnapshot{
		ExamID:         examID,
		AnsweredCounts: make(map[int]int64),
		EventCounts:    make(map[int]int64),
	}

	var (
		answered    map[int]int64
		events      map[int]int64
		countErr    error
		answeredErr error
		eventErr    error
		wg          sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		snap.InProgress, snap.Submitted, snap.Graded, countErr = s.reader.CountByStatus(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		answered, answeredErr = s.reader.GetAnsweredCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		events, eventErr = s.reader.GetEventCounts(ctx, examID)
	}()
	wg.Wait()

	if countErr != nil {
		return nil, countErr
	}
	if answeredErr != nil {
		return nil, answeredErr
	}
	if answered != nil {
		snap.AnsweredCounts = answered
	}
	if eventErr == nil && events != nil {
		snap.EventCounts = events
	}
	return snap, nil
}

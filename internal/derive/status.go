package derive

import (
	"time"

	"painel-pcm-backend/internal/model"
)

const (
	partialRatio   = 0.5
	completedRatio = 0.9
)

// StatusOf derives the category of a record at time now.
func StatusOf(r model.Record, now time.Time) model.Status {
	if r.StatusCode == nil {
		return model.StatusNotStarted
	}

	switch *r.StatusCode {
	case model.CodeCancelled:
		return model.StatusCancelled
	case model.CodeCompleted:
		return model.StatusCompleted
	case model.CodeInProgress:
		return refine(Scheduled(r), Elapsed(r, now))
	default:
		if r.ActualStart != nil {
			return model.StatusInProgress
		}
		return model.StatusNotStarted
	}
}

// refine classifies an in-progress record by its realised fraction of the plan.
func refine(scheduled, actual Duration) model.Status {
	if !scheduled.Known || scheduled.Minutes <= 0 || !actual.Known {
		return model.StatusInProgress
	}
	return ByRatio(float64(actual.Minutes) / float64(scheduled.Minutes))
}

// ByRatio maps an actual/scheduled ratio onto a status.
func ByRatio(ratio float64) model.Status {
	switch {
	case ratio < partialRatio:
		return model.StatusCancelled
	case ratio < completedRatio:
		return model.StatusPartial
	default:
		return model.StatusCompleted
	}
}

// View is the derived, render-ready state of one record.
type View struct {
	Key       string       `json:"key"`
	Status    model.Status `json:"status"`
	Elapsed   Duration     `json:"elapsed"`
	Scheduled Duration     `json:"scheduled"`
	Block     bool         `json:"block"`
}

// ViewOf derives the full view of a record at time now.
func ViewOf(r model.Record, now time.Time) View {
	return View{
		Key:       r.Key(),
		Status:    StatusOf(r, now),
		Elapsed:   Elapsed(r, now),
		Scheduled: Scheduled(r),
		Block:     IsBlock(r),
	}
}

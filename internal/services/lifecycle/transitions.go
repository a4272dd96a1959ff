package lifecycle

import "github.com/campusgig/campusgig-backend/internal/models"

// Jobs only move forward: open -> assigned -> completed -> rated, and paid is
// reachable from completed or rated once the held payment is released.
var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusOpen:      {models.JobStatusAssigned},
	models.JobStatusAssigned:  {models.JobStatusCompleted},
	models.JobStatusCompleted: {models.JobStatusRated, models.JobStatusPaid},
	models.JobStatusRated:     {models.JobStatusPaid},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to models.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// JobStatusOf maps an assignment status onto the job status it corresponds to.
func JobStatusOf(a models.AssignmentStatus) models.JobStatus {
	switch a {
	case models.AssignmentAccepted:
		return models.JobStatusAssigned
	case models.AssignmentCompleted:
		return models.JobStatusCompleted
	case models.AssignmentRated:
		return models.JobStatusRated
	case models.AssignmentPaid:
		return models.JobStatusPaid
	}
	return models.JobStatusOpen
}

// CanAdvance applies the job transition table to an assignment.
func CanAdvance(from, to models.AssignmentStatus) bool {
	return CanTransition(JobStatusOf(from), JobStatusOf(to))
}

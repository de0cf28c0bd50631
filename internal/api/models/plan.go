package models

import "github.com/runcoach/runcoach/internal/plan"

// GeneratePlanResponse is the body of a successful POST /api/generate-plan.
type GeneratePlanResponse struct {
	TrainingPlan *plan.TrainingPlan `json:"trainingPlan"`
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/api/models"
	"github.com/runcoach/runcoach/internal/api/response"
	"github.com/runcoach/runcoach/internal/generator"
	"github.com/runcoach/runcoach/internal/plan"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

// PlanGenerator produces a training plan for a request.
type PlanGenerator interface {
	Generate(ctx context.Context, req *plan.PlanRequest) (*plan.TrainingPlan, error)
}

// PlanHandler handles training plan generation.
type PlanHandler struct {
	generator PlanGenerator
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(gen PlanGenerator) *PlanHandler {
	return &PlanHandler{generator: gen}
}

// GeneratePlan handles POST /api/generate-plan.
func (h *PlanHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	var req plan.PlanRequest
	if err := decodeSingle(r.Body, &req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			response.Error(w, r, http.StatusRequestEntityTooLarge, models.MsgBodyTooLarge, nil)
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, models.MsgInvalidJSON, nil)
		default:
			response.BadRequest(w, r, models.MsgInvalidJSON, err.Error())
		}
		return
	}

	p, err := h.generator.Generate(r.Context(), &req)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, models.MsgInvalidInput, verr.Errors)
			return
		}

		log.Error().Err(err).Msg("training plan generation failed")
		response.InternalError(w, r, generationErrorMessage(err))
		return
	}

	response.JSON(w, r, http.StatusOK, models.GeneratePlanResponse{TrainingPlan: p})
}

// generationErrorMessage picks the client-facing message for a failed generation.
func generationErrorMessage(err error) string {
	switch {
	case errors.Is(err, plan.ErrMalformedPlan):
		return models.MsgMalformedPlan
	case errors.Is(err, generator.ErrEmptyResponse):
		return models.MsgEmptyAIResponse
	case errors.Is(err, resilience.ErrCircuitOpen):
		return models.MsgProviderBusy
	default:
		return models.MsgGenerationFailed
	}
}

var errTrailingData = errors.New("request body must contain a single JSON object")

// decodeSingle decodes exactly one JSON value from body into v.
func decodeSingle(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errTrailingData
	}
	return nil
}

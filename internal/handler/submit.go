package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/resumerelay/internal/intake"
	"github.com/resumerelay/internal/model"
	"github.com/resumerelay/internal/relay"
	"github.com/resumerelay/internal/validator"
)

const (
	msgSubmitted        = "Resume submitted successfully"
	msgSubmittedPartial = "Resume submitted successfully, but the confirmation email could not be sent"
	msgMissingFields    = "All required fields must be filled"
	msgInvalidEmail     = "Invalid email format"
)

type formParser interface {
	Parse(w http.ResponseWriter, r *http.Request) (validator.Fields, *model.ResumeFile, error)
}

type processor interface {
	Process(ctx context.Context, fields validator.Fields, resume *model.ResumeFile) relay.Outcome
}

// SubmitHandler accepts resume submissions.
type SubmitHandler struct {
	BaseHandler
	forms formParser
	relay processor
}

func NewSubmitHandler(logger *slog.Logger, forms formParser, relay processor) *SubmitHandler {
	return &SubmitHandler{
		BaseHandler: BaseHandler{Logger: logger},
		forms:       forms,
		relay:       relay,
	}
}

// Submit handles POST /api/submit-resume.
func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	fields, resume, err := h.forms.Parse(w, r)
	if err != nil {
		var uploadErr *intake.UploadError
		if errors.As(err, &uploadErr) {
			h.Logger.Info("upload rejected", "reason", uploadErr.Reason)
			h.errorResponse(w, r, http.StatusBadRequest, uploadErr.Error())
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	out := h.relay.Process(r.Context(), fields, resume)

	switch out.State {
	case relay.StateSucceeded:
		h.respondSubmitted(w, r, true, msgSubmitted)
	case relay.StatePartiallySucceeded:
		h.respondSubmitted(w, r, false, msgSubmittedPartial)
	case relay.StateRejected:
		switch {
		case errors.Is(out.Err, validator.ErrInvalidEmailFormat):
			h.errorResponse(w, r, http.StatusBadRequest, msgInvalidEmail)
		default:
			h.errorResponse(w, r, http.StatusBadRequest, msgMissingFields)
		}
	default:
		h.serverErrorResponse(w, r, out.Err)
	}
}

func (h *SubmitHandler) respondSubmitted(w http.ResponseWriter, r *http.Request, confirmationSent bool, message string) {
	env := envelope{"success": true, "confirmationSent": confirmationSent, "message": message}
	if err := h.writeJSON(w, http.StatusOK, env, nil); err != nil {
		h.logError(r, err)
	}
}

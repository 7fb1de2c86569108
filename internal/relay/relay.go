package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/resumerelay/internal/mailer"
	"github.com/resumerelay/internal/model"
	"github.com/resumerelay/internal/validator"
)

// maxLoggedPosition caps the applicant-supplied position text in log lines.
const maxLoggedPosition = 64

// State is a step in the life of one submission.
type State string

const (
	StateReceived             State = "received"
	StateValidating           State = "validating"
	StateRejected             State = "rejected"
	StateComposing            State = "composing"
	StateSendingRecruiterMail State = "sending_recruiter_mail"
	StateSendingApplicantMail State = "sending_applicant_mail"
	StateSucceeded            State = "succeeded"
	StatePartiallySucceeded   State = "partially_succeeded"
	StateFailed               State = "failed"
)

// Sender delivers one composed message.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type composer interface {
	Compose(sub *model.Submission) (recruiter, applicant mailer.Message)
}

type hasher interface {
	Short(s string) string
}

// Outcome is the result of processing one submission.
type Outcome struct {
	ID    string
	State State
	Err   error
	Trail []State
}

// Relay validates a submission and hands the recruiter notification and the
// applicant confirmation to the mail transport, in that order.
type Relay struct {
	composer composer
	sender   Sender
	hasher   hasher
	logger   *slog.Logger
}

func New(c composer, s Sender, h hasher, logger *slog.Logger) *Relay {
	return &Relay{composer: c, sender: s, hasher: h, logger: logger}
}

// Process runs one submission to a terminal state. Rejected outcomes carry
// a validator error; failed and partially succeeded outcomes carry the
// transport error.
func (r *Relay) Process(ctx context.Context, fields validator.Fields, resume *model.ResumeFile) Outcome {
	out := Outcome{ID: uuid.NewString()}
	log := r.logger.With("submission_id", out.ID)

	out.advance(StateReceived)
	out.advance(StateValidating)
	sub, err := validator.Validate(fields, resume)
	if err != nil {
		log.Info("submission rejected", "reason", err)
		return out.finish(StateRejected, err)
	}

	log = log.With(
		"applicant_ref", r.hasher.Short(sub.Email),
		"position", truncate(sub.Position, maxLoggedPosition),
		"resume_size", humanize.IBytes(uint64(sub.Resume.SizeBytes)),
	)
	log.Info("submission accepted")

	out.advance(StateComposing)
	recruiterMsg, applicantMsg := r.composer.Compose(sub)

	out.advance(StateSendingRecruiterMail)
	if err := r.sender.Send(ctx, recruiterMsg); err != nil {
		log.Error("recruiter notification failed", "error", err)
		return out.finish(StateFailed, fmt.Errorf("relay: recruiter notification: %w", err))
	}

	out.advance(StateSendingApplicantMail)
	if err := r.sender.Send(ctx, applicantMsg); err != nil {
		log.Error("applicant confirmation failed", "error", err)
		return out.finish(StatePartiallySucceeded, fmt.Errorf("relay: applicant confirmation: %w", err))
	}

	log.Info("submission delivered")
	return out.finish(StateSucceeded, nil)
}

func (o *Outcome) advance(s State) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

func (o *Outcome) finish(s State, err error) Outcome {
	o.advance(s)
	o.Err = err
	return *o
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"testing"

	"github.com/resumerelay/internal/crypto"
	"github.com/resumerelay/internal/mailer"
	"github.com/resumerelay/internal/model"
	"github.com/resumerelay/internal/validator"
)

// fakeSender records every message and fails the call whose 1-based index
// matches failOn.
type fakeSender struct {
	sent   []mailer.Message
	failOn int
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.sent = append(f.sent, msg)
	if len(f.sent) == f.failOn {
		return errors.New("smtp: 421 service not available")
	}
	return nil
}

func newTestRelay(s Sender, logOut io.Writer) *Relay {
	c := mailer.NewComposer(mail.Address{Name: "Careers", Address: "careers@example.com"}, "recruiting@example.com", "https://example.com")
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(c, s, crypto.New([]byte("test-key")), logger)
}

func validFields() validator.Fields {
	return validator.Fields{
		Surname:   "Lovelace",
		FirstName: "Ada",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		Position:  "Engineer",
	}
}

func testResume() *model.ResumeFile {
	return &model.ResumeFile{
		OriginalName: "ada-cv.pdf",
		SizeBytes:    9,
		MIMEType:     "application/pdf",
		Data:         []byte("%PDF-1.4\n"),
	}
}

func TestProcessSendsRecruiterThenApplicant(t *testing.T) {
	s := &fakeSender{}
	out := newTestRelay(s, io.Discard).Process(context.Background(), validFields(), testResume())

	if out.State != StateSucceeded || out.Err != nil {
		t.Fatalf("expected success, got %s (%v)", out.State, out.Err)
	}
	if out.ID == "" {
		t.Error("expected a submission id")
	}
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(s.sent))
	}

	recruiter, applicant := s.sent[0], s.sent[1]
	if recruiter.To[0] != "recruiting@example.com" || recruiter.ReplyTo != "ada@example.com" {
		t.Errorf("first send should be the recruiter notification, got %+v", recruiter.To)
	}
	if len(recruiter.Attachments) != 1 || !bytes.Equal(recruiter.Attachments[0].Data, testResume().Data) {
		t.Error("recruiter notification should carry the resume")
	}
	if applicant.To[0] != "ada@example.com" || applicant.Subject != mailer.ApplicantSubject {
		t.Errorf("second send should be the applicant confirmation, got %+v", applicant.To)
	}

	want := []State{StateReceived, StateValidating, StateComposing, StateSendingRecruiterMail, StateSendingApplicantMail, StateSucceeded}
	if !slices.Equal(out.Trail, want) {
		t.Errorf("trail = %v, want %v", out.Trail, want)
	}
}

func TestProcessRejectsWithoutSending(t *testing.T) {
	tests := []struct {
		name   string
		fields func(f *validator.Fields)
		resume *model.ResumeFile
		want   error
	}{
		{"missing surname", func(f *validator.Fields) { f.Surname = "" }, testResume(), validator.ErrMissingFields},
		{"whitespace position", func(f *validator.Fields) { f.Position = "   " }, testResume(), validator.ErrMissingFields},
		{"no resume", func(f *validator.Fields) {}, nil, validator.ErrMissingFields},
		{"bad email", func(f *validator.Fields) { f.Email = "ada.example.com" }, testResume(), validator.ErrInvalidEmailFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			f := validFields()
			tt.fields(&f)

			out := newTestRelay(s, io.Discard).Process(context.Background(), f, tt.resume)

			if out.State != StateRejected {
				t.Fatalf("expected rejected, got %s", out.State)
			}
			if !errors.Is(out.Err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, out.Err)
			}
			if len(s.sent) != 0 {
				t.Errorf("expected no sends, got %d", len(s.sent))
			}
		})
	}
}

func TestProcessRecruiterFailureSkipsConfirmation(t *testing.T) {
	s := &fakeSender{failOn: 1}
	out := newTestRelay(s, io.Discard).Process(context.Background(), validFields(), testResume())

	if out.State != StateFailed {
		t.Fatalf("expected failed, got %s", out.State)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "recruiter notification") {
		t.Errorf("unexpected error %v", out.Err)
	}
	if len(s.sent) != 1 {
		t.Errorf("confirmation must not be attempted, got %d sends", len(s.sent))
	}
}

func TestProcessConfirmationFailureIsPartial(t *testing.T) {
	s := &fakeSender{failOn: 2}
	out := newTestRelay(s, io.Discard).Process(context.Background(), validFields(), testResume())

	if out.State != StatePartiallySucceeded {
		t.Fatalf("expected partially_succeeded, got %s", out.State)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "applicant confirmation") {
		t.Errorf("unexpected error %v", out.Err)
	}
	if len(s.sent) != 2 {
		t.Errorf("expected 2 sends, got %d", len(s.sent))
	}
}

func TestProcessKeepsApplicantEmailOutOfLogs(t *testing.T) {
	var buf bytes.Buffer
	out := newTestRelay(&fakeSender{}, &buf).Process(context.Background(), validFields(), testResume())

	logs := buf.String()
	if strings.Contains(logs, "ada@example.com") {
		t.Error("logs contain the applicant email")
	}
	if !strings.Contains(logs, out.ID) {
		t.Error("logs should carry the submission id")
	}
	if !strings.Contains(logs, "applicant_ref=") {
		t.Error("logs should carry a hashed applicant reference")
	}
}

func TestProcessCapsPositionInLogs(t *testing.T) {
	var buf bytes.Buffer
	f := validFields()
	f.Position = strings.Repeat("x", 500)

	out := newTestRelay(&fakeSender{}, &buf).Process(context.Background(), f, testResume())
	if out.State != StateSucceeded {
		t.Fatalf("expected success, got %s", out.State)
	}
	if strings.Contains(buf.String(), strings.Repeat("x", maxLoggedPosition+1)) {
		t.Error("position was logged beyond the cap")
	}
	if !strings.Contains(buf.String(), strings.Repeat("x", maxLoggedPosition)+"...") {
		t.Error("expected the truncated position in the logs")
	}
}

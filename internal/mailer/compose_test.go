package mailer

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/resumerelay/internal/model"
)

func newTestComposer() *Composer {
	return NewComposer(
		mail.Address{Name: "Acme Careers", Address: "noreply@acme.example"},
		"careers@acme.example",
		"https://acme.example/about",
	)
}

func testSubmission() *model.Submission {
	return &model.Submission{
		Surname:   "Lovelace",
		FirstName: "Ada",
		Email:     "ada@example.org",
		Phone:     "020 7946 0000",
		Position:  "Backend Engineer",
		Resume: &model.ResumeFile{
			OriginalName: "ada-cv.pdf",
			SizeBytes:    153_600,
			MIMEType:     "application/pdf",
			Data:         []byte("%PDF-1.7 fake"),
		},
	}
}

func TestComposeRecruiterNotification(t *testing.T) {
	sub := testSubmission()
	recruiter, _ := newTestComposer().Compose(sub)

	if len(recruiter.To) != 1 || recruiter.To[0] != "careers@acme.example" {
		t.Errorf("recruiter recipient = %v", recruiter.To)
	}
	if recruiter.ReplyTo != "ada@example.org" {
		t.Errorf("ReplyTo = %q, want applicant email", recruiter.ReplyTo)
	}
	if recruiter.From.Address != "noreply@acme.example" || recruiter.From.Name != "Acme Careers" {
		t.Errorf("From = %v", recruiter.From)
	}
	if !strings.Contains(recruiter.Subject, "Ada Lovelace") || !strings.Contains(recruiter.Subject, "Backend Engineer") {
		t.Errorf("subject should name applicant and position, got %q", recruiter.Subject)
	}

	for _, want := range []string{"Ada Lovelace", "ada@example.org", "020 7946 0000", "Backend Engineer", "ada-cv.pdf (150.00 KB)", "Not provided"} {
		if !strings.Contains(recruiter.HTML, want) {
			t.Errorf("expected %q in recruiter body, got:\n%s", want, recruiter.HTML)
		}
	}

	if len(recruiter.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(recruiter.Attachments))
	}
	att := recruiter.Attachments[0]
	if att.Filename != "ada-cv.pdf" || att.ContentType != "application/pdf" || !bytes.Equal(att.Data, sub.Resume.Data) {
		t.Errorf("attachment not carried verbatim: %+v", att)
	}
}

func TestComposeLinkedInVerbatim(t *testing.T) {
	sub := testSubmission()
	sub.LinkedIn = "https://linkedin.com/in/ada"

	recruiter, _ := newTestComposer().Compose(sub)
	if !strings.Contains(recruiter.HTML, "https://linkedin.com/in/ada") {
		t.Errorf("expected LinkedIn URL in body, got:\n%s", recruiter.HTML)
	}
	if strings.Contains(recruiter.HTML, "Not provided") {
		t.Error("did not expect the missing-LinkedIn placeholder")
	}
}

func TestComposeApplicantConfirmation(t *testing.T) {
	_, applicant := newTestComposer().Compose(testSubmission())

	if len(applicant.To) != 1 || applicant.To[0] != "ada@example.org" {
		t.Errorf("applicant recipient = %v", applicant.To)
	}
	if applicant.Subject != ApplicantSubject {
		t.Errorf("subject = %q", applicant.Subject)
	}
	if applicant.ReplyTo != "" {
		t.Errorf("confirmation should not set Reply-To, got %q", applicant.ReplyTo)
	}
	if len(applicant.Attachments) != 0 {
		t.Errorf("confirmation should carry no attachment")
	}
	for _, want := range []string{"Dear Ada,", "Backend Engineer", `href="https://acme.example/about"`, "Acme Careers"} {
		if !strings.Contains(applicant.HTML, want) {
			t.Errorf("expected %q in confirmation body, got:\n%s", want, applicant.HTML)
		}
	}
}

func TestComposeEscapesApplicantInput(t *testing.T) {
	sub := testSubmission()
	sub.FirstName = "<script>alert(1)</script>"
	sub.Position = `Engineer <img src=x onerror="x">`

	recruiter, applicant := newTestComposer().Compose(sub)
	for _, body := range []string{recruiter.HTML, applicant.HTML} {
		if strings.Contains(body, "<script>") || strings.Contains(body, "<img") {
			t.Errorf("applicant input was not escaped:\n%s", body)
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	c := newTestComposer()
	r1, a1 := c.Compose(testSubmission())
	r2, a2 := c.Compose(testSubmission())
	if r1.HTML != r2.HTML || a1.HTML != a2.HTML || r1.Subject != r2.Subject {
		t.Error("composing the same submission twice produced different messages")
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{153_600, "150.00 KB"},
		{0, "0.00 KB"},
		{1, "0.00 KB"},
		{1536, "1.50 KB"},
		{5_242_880, "5120.00 KB"},
		{1000, "0.98 KB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

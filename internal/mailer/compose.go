package mailer

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"net/mail"

	"github.com/resumerelay/internal/model"
)

const (
	ApplicantSubject = "Application Received - Thank You!"
	linkedInMissing  = "Not provided"
)

var recruiterTmpl = template.Must(template.New("recruiter").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333; border-bottom: 2px solid #4a90d9; padding-bottom: 10px;">New Job Application</h2>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td style="padding: 8px; font-weight: bold; width: 140px;">Name:</td><td style="padding: 8px;">{{.Name}}</td></tr>
    <tr><td style="padding: 8px; font-weight: bold;">Email:</td><td style="padding: 8px;">{{.Email}}</td></tr>
    <tr><td style="padding: 8px; font-weight: bold;">Phone:</td><td style="padding: 8px;">{{.Phone}}</td></tr>
    <tr><td style="padding: 8px; font-weight: bold;">Position:</td><td style="padding: 8px;">{{.Position}}</td></tr>
    <tr><td style="padding: 8px; font-weight: bold;">LinkedIn:</td><td style="padding: 8px;">{{.LinkedIn}}</td></tr>
    <tr><td style="padding: 8px; font-weight: bold;">Resume:</td><td style="padding: 8px;">{{.ResumeName}} ({{.ResumeSize}})</td></tr>
  </table>
  <p style="color: #666; font-size: 12px; margin-top: 20px;">The resume is attached to this email. Reply to this message to contact the applicant directly.</p>
</div>`))

var applicantTmpl = template.Must(template.New("applicant").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Thank you for your application!</h2>
  <p>Dear {{.FirstName}},</p>
  <p>We have received your application for the <strong>{{.Position}}</strong> position. Our recruiting team will review your resume and get back to you if your profile matches our requirements.</p>
  <p>In the meantime, find out more about us at <a href="{{.PromoURL}}">{{.PromoURL}}</a>.</p>
  <p>Best regards,<br>{{.Team}}</p>
</div>`))

type recruiterData struct {
	Name       string
	Email      string
	Phone      string
	Position   string
	LinkedIn   string
	ResumeName string
	ResumeSize string
}

type applicantData struct {
	FirstName string
	Position  string
	PromoURL  string
	Team      string
}

// Composer builds the recruiter notification and applicant confirmation for
// a validated submission.
type Composer struct {
	from           mail.Address
	recruiterEmail string
	promoURL       string
}

func NewComposer(from mail.Address, recruiterEmail, promoURL string) *Composer {
	return &Composer{from: from, recruiterEmail: recruiterEmail, promoURL: promoURL}
}

// Compose returns the recruiter notification (with the resume attached and
// Reply-To set to the applicant) and the applicant confirmation.
func (c *Composer) Compose(sub *model.Submission) (recruiter, applicant Message) {
	linkedIn := sub.LinkedIn
	if linkedIn == "" {
		linkedIn = linkedInMissing
	}

	recruiter = Message{
		From:    c.from,
		To:      []string{c.recruiterEmail},
		ReplyTo: sub.Email,
		Subject: fmt.Sprintf("New Job Application: %s - %s", sub.FullName(), sub.Position),
		HTML: render(recruiterTmpl, recruiterData{
			Name:       sub.FullName(),
			Email:      sub.Email,
			Phone:      sub.Phone,
			Position:   sub.Position,
			LinkedIn:   linkedIn,
			ResumeName: sub.Resume.OriginalName,
			ResumeSize: FormatSize(sub.Resume.SizeBytes),
		}),
		Attachments: []Attachment{{
			Filename:    sub.Resume.OriginalName,
			ContentType: sub.Resume.MIMEType,
			Data:        sub.Resume.Data,
		}},
	}

	applicant = Message{
		From:    c.from,
		To:      []string{sub.Email},
		Subject: ApplicantSubject,
		HTML: render(applicantTmpl, applicantData{
			FirstName: sub.FirstName,
			Position:  sub.Position,
			PromoURL:  c.promoURL,
			Team:      c.from.Name,
		}),
	}

	return recruiter, applicant
}

// FormatSize renders a byte count in KiB with two decimals, e.g. "150.00 KB".
func FormatSize(n int64) string {
	return fmt.Sprintf("%.2f KB", float64(n)/1024)
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "<p>" + html.EscapeString(fmt.Sprintf("%+v", data)) + "</p>"
	}
	return buf.String()
}

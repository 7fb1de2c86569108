package intake

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/resumerelay/internal/model"
	"github.com/resumerelay/internal/validator"
)

// ResumeField is the multipart field carrying the resume.
const ResumeField = "resume"

// formOverhead is allowed on top of the file limit for the text fields and
// multipart framing.
const formOverhead = 1 << 20

// AllowedTypes are the accepted declared MIME types for a resume.
var AllowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// UploadError reports a rejected or unreadable upload. Its message is safe
// to show to the client.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	return "Upload error: " + e.Reason
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Intake parses application form uploads into memory.
type Intake struct {
	maxFileBytes int64
}

func New(maxFileBytes int64) *Intake {
	return &Intake{maxFileBytes: maxFileBytes}
}

// Parse reads the multipart body of r. It returns the text fields and the
// resume, which is nil when none was uploaded. Oversized files, disallowed
// types and malformed bodies produce an *UploadError.
func (in *Intake) Parse(w http.ResponseWriter, r *http.Request) (validator.Fields, *model.ResumeFile, error) {
	maxBody := in.maxFileBytes + formOverhead
	if r.ContentLength > maxBody {
		return validator.Fields{}, nil, in.tooLarge(nil)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	// Keep the whole body in memory; nothing touches disk.
	if err := r.ParseMultipartForm(maxBody); err != nil {
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesError):
			return validator.Fields{}, nil, in.tooLarge(err)
		case errors.Is(err, http.ErrNotMultipart):
			return validator.Fields{}, nil, &UploadError{Reason: "request must be multipart/form-data", Err: err}
		default:
			return validator.Fields{}, nil, &UploadError{Reason: "malformed form data", Err: err}
		}
	}
	defer r.MultipartForm.RemoveAll()

	// Body fields only; the query string never contributes.
	fields := validator.Fields{
		Surname:   r.PostFormValue("surname"),
		FirstName: r.PostFormValue("firstName"),
		Email:     r.PostFormValue("email"),
		Phone:     r.PostFormValue("phone"),
		Position:  r.PostFormValue("position"),
		LinkedIn:  r.PostFormValue("linkedin"),
	}

	for name, headers := range r.MultipartForm.File {
		if name != ResumeField {
			return validator.Fields{}, nil, &UploadError{Reason: fmt.Sprintf("unexpected field %q", name)}
		}
		if len(headers) > 1 {
			return validator.Fields{}, nil, &UploadError{Reason: "only one resume may be uploaded"}
		}
	}

	headers := r.MultipartForm.File[ResumeField]
	if len(headers) == 0 {
		return fields, nil, nil
	}

	resume, err := in.readResume(headers[0])
	if err != nil {
		return validator.Fields{}, nil, err
	}
	return fields, resume, nil
}

func (in *Intake) readResume(fh *multipart.FileHeader) (*model.ResumeFile, error) {
	if fh.Size > in.maxFileBytes {
		return nil, in.tooLarge(nil)
	}

	header := fh.Header.Get("Content-Type")
	declared, _, err := mime.ParseMediaType(header)
	if err != nil || !AllowedTypes[declared] {
		return nil, invalidType()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, &UploadError{Reason: "could not read file", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, in.maxFileBytes+1))
	if err != nil {
		return nil, &UploadError{Reason: "could not read file", Err: err}
	}
	if int64(len(data)) > in.maxFileBytes {
		return nil, in.tooLarge(nil)
	}

	if !contentMatches(data) {
		return nil, invalidType()
	}

	return &model.ResumeFile{
		OriginalName: filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/")),
		SizeBytes:    int64(len(data)),
		MIMEType:     header,
		Data:         data,
	}, nil
}

// contentMatches reports whether the sniffed content is a document format a
// resume can plausibly be in. DOCX is a zip container and DOC an OLE
// compound file, so their generic containers are accepted too.
func contentMatches(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if AllowedTypes[m.String()] || m.Is("application/zip") || m.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

func (in *Intake) tooLarge(err error) *UploadError {
	return &UploadError{
		Reason: fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(in.maxFileBytes))),
		Err:    err,
	}
}

func invalidType() *UploadError {
	return &UploadError{Reason: "invalid file type, only PDF, DOC and DOCX files are allowed"}
}

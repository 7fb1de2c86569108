package model

// ResumeFile is an uploaded resume held in memory for the life of a request.
type ResumeFile struct {
	OriginalName string
	SizeBytes    int64
	MIMEType     string
	Data         []byte
}

// Submission is one applicant's validated form data plus resume. It is never
// stored; it lives only as long as the request that produced it.
type Submission struct {
	Surname   string
	FirstName string
	Email     string
	Phone     string
	Position  string
	LinkedIn  string // optional
	Resume    *ResumeFile
}

// FullName returns "FirstName Surname".
func (s *Submission) FullName() string {
	return s.FirstName + " " + s.Surname
}

package minidump

import (
	"time"

	"github.com/satori/go.uuid"
)

// Report is one decoded crash upload. Fields holds the multipart text fields
// exactly as they were sent; file parts never appear there.
type Report struct {
	Id       string            `json:"id"`
	Fields   map[string]string `json:"fields"`
	Files    map[string]string `json:"files,omitempty"`
	Received time.Time         `json:"received"`
}

// NewId returns a fresh report identifier.
func NewId() string {
	return uuid.NewV4().String()
}

func NewReport(fields map[string]string) *Report {
	if fields == nil {
		fields = map[string]string{}
	}
	return &Report{
		Id:       NewId(),
		Fields:   fields,
		Received: time.Now(),
	}
}

// Get returns the value of a form field and whether it was sent at all.
func (r *Report) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Clone returns a deep copy so callers can't mutate the collector's log.
func (r *Report) Clone() *Report {
	c := &Report{
		Id:       r.Id,
		Fields:   make(map[string]string, len(r.Fields)),
		Received: r.Received,
	}
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	if len(r.Files) > 0 {
		c.Files = make(map[string]string, len(r.Files))
		for k, v := range r.Files {
			c.Files[k] = v
		}
	}
	return c
}

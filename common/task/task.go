package task

import (
	"encoding/json"
	"time"

	"github.com/go-errors/errors"

	"github.com/iqoption/crashcollector/common/format/minidump"
)

const (
	PROCESS_DUMP = 1 << iota
)

// Dump is the queue envelope for one collected crash.
type Dump struct {
	Type     uint              `json:"type"`
	Id       string            `json:"id"`
	Fields   map[string]string `json:"fields"`
	Minidump string            `json:"minidump,omitempty"`
	Time     string            `json:"time,omitempty"`
}

const minidumpPart = "upload_file_minidump"

func FromJson(data []byte) (*Dump, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if d.Type != PROCESS_DUMP {
		return nil, errors.Errorf("unknown task type %d", d.Type)
	}
	if len(d.Time) == 0 {
		d.Time = getTimeStamp(time.Now())
	}
	return &d, nil
}

func CreateDumpTask(r *minidump.Report) *Dump {
	return &Dump{
		Type:     PROCESS_DUMP,
		Id:       r.Id,
		Fields:   r.Fields,
		Minidump: r.Files[minidumpPart],
		Time:     getTimeStamp(r.Received),
	}
}

func getTimeStamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

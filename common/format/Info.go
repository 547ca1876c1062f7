package format

import (
	"sort"

	"github.com/iqoption/crashcollector/common/format/minidump"
)

// Well-known fields sent by Breakpad/Crashpad style reporters.
const (
	FieldProduct     = "prod"
	FieldVersion     = "ver"
	FieldProcessType = "process_type"
	FieldPlatform    = "platform"
	FieldGuid        = "guid"
	FieldProductName = "_productName"
	FieldCompanyName = "_companyName"
	FieldAppVersion  = "_version"
)

var knownFields = map[string]bool{
	FieldProduct:     true,
	FieldVersion:     true,
	FieldProcessType: true,
	FieldPlatform:    true,
	FieldGuid:        true,
	FieldProductName: true,
	FieldCompanyName: true,
	FieldAppVersion:  true,
}

type Info struct {
	Product     string `json:"prod,omitempty"`
	Version     string `json:"ver,omitempty"`
	ProcessType string `json:"process_type,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Guid        string `json:"guid,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	AppVersion  string `json:"app_version,omitempty"`
}

func InfoFromReport(r *minidump.Report) *Info {
	f := r.Fields
	return &Info{
		Product:     f[FieldProduct],
		Version:     f[FieldVersion],
		ProcessType: f[FieldProcessType],
		Platform:    f[FieldPlatform],
		Guid:        f[FieldGuid],
		ProductName: f[FieldProductName],
		CompanyName: f[FieldCompanyName],
		AppVersion:  f[FieldAppVersion],
	}
}

// Extras returns the names of custom fields, i.e. everything the reporter
// attached on top of the well-known metadata, sorted.
func Extras(r *minidump.Report) []string {
	var names []string
	for name := range r.Fields {
		if !knownFields[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// internal/intake/models.go
package intake

// Report is the raw hazard report payload accepted at the intake boundary.
// The web layer hands it over as decoded JSON; nothing upstream is trusted.
type Report struct {
	HazardType string `json:"hazardType"`
	Region     string `json:"region"`
	Severity   string `json:"severity"`
	ReportedAt string `json:"reportedAt"` // RFC 3339
	Source     string `json:"source,omitempty"`
}

// AsMap converts the report to the generic payload shape the schema validator
// consumes.
func (r Report) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"hazardType": r.HazardType,
		"region":     r.Region,
		"severity":   r.Severity,
		"reportedAt": r.ReportedAt,
	}
	if r.Source != "" {
		m["source"] = r.Source
	}
	return m
}

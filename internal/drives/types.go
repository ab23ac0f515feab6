package drives

type SmartSummary struct {
	Healthy      *bool `json:"healthy,omitempty"`
	TempCelsius  *int  `json:"temp_c,omitempty"`
	PowerOnHours *int  `json:"power_on_hours,omitempty"`
}

type Drive struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	ByIDPath   string        `json:"by_id_path,omitempty"`
	SizeBytes  int64         `json:"size"`
	Rota       *bool         `json:"rota,omitempty"`
	Type       string        `json:"type"`
	Tran       string        `json:"tran,omitempty"`
	Vendor     string        `json:"vendor,omitempty"`
	Model      string        `json:"model,omitempty"`
	Serial     string        `json:"serial,omitempty"`
	Mountpoint *string       `json:"mountpoint,omitempty"`
	FSType     string        `json:"fstype,omitempty"`
	Smart      *SmartSummary `json:"smart,omitempty"`
}

// InUse reports whether the drive carries anything a pool create must not
// clobber: a mount, a filesystem signature, or membership in an existing array.
func (d Drive) InUse() bool {
	if d.Mountpoint != nil && *d.Mountpoint != "" {
		return true
	}
	return d.FSType != ""
}

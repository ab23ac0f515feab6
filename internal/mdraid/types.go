package mdraid

// Member is one device participating in an array, as reported by /proc/mdstat.
type Member struct {
	Name   string `json:"name"`
	Role   int    `json:"role"`
	Faulty bool   `json:"faulty,omitempty"`
	Spare  bool   `json:"spare,omitempty"`
}

// SyncProgress describes an in-flight resync/recovery/check pass.
type SyncProgress struct {
	Action     string  `json:"action"` // resync|recovery|check|reshape
	Percent    float64 `json:"percent"`
	FinishMins float64 `json:"finish_mins,omitempty"`
	SpeedKBps  int64   `json:"speed_kbps,omitempty"`
}

type Array struct {
	Name          string        `json:"name"` // kernel name, e.g. md127
	Level         string        `json:"level"`
	Active        bool          `json:"active"`
	ActiveDevices int           `json:"active_devices"`
	TotalDevices  int           `json:"total_devices"`
	Degraded      bool          `json:"degraded"`
	Members       []Member      `json:"members"`
	Sync          *SyncProgress `json:"sync,omitempty"`
	UUID          string        `json:"uuid,omitempty"`
	State         string        `json:"state,omitempty"` // from mdadm --detail
}

func (a Array) DevicePath() string { return "/dev/" + a.Name }

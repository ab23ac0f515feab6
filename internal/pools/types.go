package pools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ironnas/backend/irond/internal/mdraid"
)

// DriveRef pins one member drive of a pool by serial and stable by-id path.
// Kernel names (/dev/sdX) are never persisted; they reshuffle across boots.
type DriveRef struct {
	Serial     string `json:"serial"`
	DevicePath string `json:"device_path"`
	Label      string `json:"label,omitempty"`
}

// Metadata is the persisted record for one pool, keyed by GUID.
type Metadata struct {
	GUID      string     `json:"guid"`
	Label     string     `json:"label"`
	MountPath string     `json:"mount_path"`
	IsMounted bool       `json:"is_mounted"`
	RaidLevel string     `json:"raid_level"`
	Drives    []DriveRef `json:"drives"`
	CreatedAt time.Time  `json:"created_at"`
}

// Pool is the merged live+persisted view served to clients.
type Pool struct {
	GUID      string               `json:"guid"`
	Label     string               `json:"label"`
	MountPath string               `json:"mount_path"`
	IsMounted bool                 `json:"is_mounted"`
	RaidLevel string               `json:"raid_level"`
	State     string               `json:"state"` // active|degraded|syncing|stopped
	Device    string               `json:"device,omitempty"`
	Drives    []DriveRef           `json:"drives"`
	SizeBytes uint64               `json:"size_bytes,omitempty"`
	UsedBytes uint64               `json:"used_bytes,omitempty"`
	FreeBytes uint64               `json:"free_bytes,omitempty"`
	Sync      *mdraid.SyncProgress `json:"sync,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

var ErrBadGUID = errors.New("pool id is not a valid GUID")

// DeviceName derives the stable md device path for a pool: /dev/md/ followed
// by the GUID's 32 hex digits. Kernel enumeration (/dev/md0, /dev/md1) is not
// stable across reboots; this name is reconstructible from metadata alone.
func DeviceName(guid string) (string, error) {
	id, err := uuid.Parse(guid)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadGUID, guid)
	}
	return "/dev/md/" + strings.ReplaceAll(id.String(), "-", ""), nil
}

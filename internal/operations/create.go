package operations

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ironnas/backend/irond/internal/fsatomic"
	"ironnas/backend/irond/internal/mdraid"
	"ironnas/backend/irond/internal/pools"
)

// raidLevels maps requested pool levels to mdadm --level arguments.
var raidLevels = map[string]string{
	"raid0":  "0",
	"raid1":  "1",
	"raid5":  "5",
	"raid6":  "6",
	"raid10": "10",
}

// scanLine is swapped in tests.
var scanLine = mdraid.ScanLine

// CreateRequest carries everything the create workflow needs; the facade
// resolves drives to stable by-id paths before dispatch.
type CreateRequest struct {
	PoolID    string
	Label     string
	RaidLevel string
	Drives    []pools.DriveRef
	MountPath string
}

// RunCreate executes the create-pool workflow: assemble the array, format,
// mount, persist metadata, register for boot-time assembly. Fail-fast with no
// rollback: a failed step leaves earlier steps' results in place for a human
// or a remove operation to clean up. Intended to run as its own goroutine.
func (m *Manager) RunCreate(opID string, req CreateRequest) {
	op := m.attach(opID, req.PoolID, KindCreatePool,
		fmt.Sprintf("create pool %q (%s, %d drives)", req.Label, req.RaidLevel, len(req.Drives)), true)
	defer m.recoverWorkflow(op.ID)

	// Capture the cancellation token up front. Cancel releases the token from
	// the registry, so a later lookup would miss a cancel that landed while a
	// command was still in flight.
	token := m.token(op.ID)

	device, err := pools.DeviceName(req.PoolID)
	if err != nil {
		m.Complete(op.ID, false, err.Error(), nil)
		return
	}
	level, ok := raidLevels[strings.ToLower(strings.TrimSpace(req.RaidLevel))]
	if !ok {
		m.Complete(op.ID, false, fmt.Sprintf("unsupported raid level %q", req.RaidLevel), nil)
		return
	}
	if len(req.Drives) == 0 {
		m.Complete(op.ID, false, "no drives given", nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "creating array", 0)
	args := []string{"--create", device,
		"--level=" + level,
		"--raid-devices=" + strconv.Itoa(len(req.Drives)),
		"--metadata=1.2", "--run"}
	for _, d := range req.Drives {
		args = append(args, d.DevicePath)
	}
	if code, out := m.run(context.Background(), "mdadm", args...); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	// The kernel needs a moment to finish internal initialization before the
	// array is safe to format. This is the one point where cancellation is
	// observed; cancelling here leaves the array created but unformatted.
	m.UpdateStatus(op.ID, StatusRunning, "waiting for array to settle", 10)
	select {
	case <-time.After(m.settleDelay):
	case <-token.Done():
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "creating filesystem", 50)
	if code, out := m.run(context.Background(), "mkfs.ext4", "-F", "-L", req.Label, device); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "mounting", 80)
	if err := os.MkdirAll(req.MountPath, 0o755); err != nil {
		m.Complete(op.ID, false, "mkdir "+req.MountPath+": "+err.Error(), nil)
		return
	}
	if code, out := m.run(context.Background(), "mount", device, req.MountPath); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "saving metadata", 90)
	meta := pools.Metadata{
		GUID:      req.PoolID,
		Label:     req.Label,
		MountPath: req.MountPath,
		IsMounted: true,
		RaidLevel: strings.ToLower(strings.TrimSpace(req.RaidLevel)),
		Drives:    req.Drives,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.meta.Update(meta); err != nil {
		m.Complete(op.ID, false, "saving metadata: "+err.Error(), nil)
		return
	}

	// Boot-time assembly registration is best effort: the pool is already
	// usable, so a failure here is logged, not fatal.
	m.UpdateStatus(op.ID, StatusRunning, "registering for boot assembly", 95)
	if err := m.appendMdadmConf(device); err != nil {
		m.logger.Warn().Err(err).Str("op", op.ID).Str("device", device).Msg("mdadm.conf update failed, array will not auto-assemble on boot")
	}

	m.Complete(op.ID, true, fmt.Sprintf("pool %q created and mounted at %s", req.Label, req.MountPath), map[string]string{"device": device})
}

// appendMdadmConf appends the array's scan signature to mdadm.conf unless an
// identical line is already present.
func (m *Manager) appendMdadmConf(device string) error {
	line, err := scanLine(context.Background(), device)
	if err != nil {
		return err
	}
	if line == "" {
		return fmt.Errorf("empty scan output for %s", device)
	}
	return fsatomic.WithLock(m.mdadmConfPath, func() error {
		existing, err := os.ReadFile(m.mdadmConfPath)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		for _, l := range strings.Split(string(existing), "\n") {
			if strings.TrimSpace(l) == line {
				return nil
			}
		}
		f, err := os.OpenFile(m.mdadmConfPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString(line + "\n")
		return err
	})
}

// recoverWorkflow converts a workflow panic into a failed terminal state so
// no caller is ever left polling a stuck operation.
func (m *Manager) recoverWorkflow(opID string) {
	if r := recover(); r != nil {
		m.logger.Error().Str("op", opID).Any("panic", r).Msg("workflow panicked")
		m.Complete(opID, false, fmt.Sprintf("internal error: %v", r), nil)
	}
}

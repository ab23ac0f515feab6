package operations

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ironnas/backend/irond/internal/fsatomic"
	"ironnas/backend/irond/internal/pools"
)

// RunRemove executes the remove-pool workflow: stop the array, best-effort
// wipe each member's superblock, drop the metadata record. Per-drive wipe
// failures are logged and collected but never abort the loop; a drive that
// kept its superblock can be wiped again by hand. Intended to run as its own
// goroutine.
func (m *Manager) RunRemove(opID, poolID string) {
	op := m.attach(opID, poolID, KindRemovePool, "remove pool "+poolID, false)
	defer m.recoverWorkflow(op.ID)

	meta, ok, err := m.meta.Get(poolID)
	if err != nil {
		m.Complete(op.ID, false, "loading metadata: "+err.Error(), nil)
		return
	}
	if !ok {
		m.Complete(op.ID, false, "unknown pool "+poolID, nil)
		return
	}
	device, err := pools.DeviceName(poolID)
	if err != nil {
		m.Complete(op.ID, false, err.Error(), nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "stopping array", 0)
	if code, out := m.run(context.Background(), "mdadm", "--stop", device); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "clearing superblocks", 50)
	wipeFailures := 0
	for _, d := range meta.Drives {
		if code, out := m.run(context.Background(), "mdadm", "--zero-superblock", d.DevicePath); code != 0 {
			wipeFailures++
			m.logger.Warn().Str("op", op.ID).Str("drive", d.DevicePath).Str("output", out).Msg("superblock wipe failed, continuing")
		}
	}

	m.UpdateStatus(op.ID, StatusRunning, "deregistering boot assembly", 70)
	if err := m.removeMdadmConf(device); err != nil {
		m.logger.Warn().Err(err).Str("op", op.ID).Msg("mdadm.conf cleanup failed")
	}

	m.UpdateStatus(op.ID, StatusRunning, "removing metadata", 90)
	if err := m.meta.Remove(poolID); err != nil {
		// The array is already stopped; the metadata record can be retried
		// independently via the forget endpoint.
		m.Complete(op.ID, false, "removing metadata: "+err.Error(), nil)
		return
	}

	result := fmt.Sprintf("pool %q removed", meta.Label)
	if wipeFailures > 0 {
		result += fmt.Sprintf(" (%d of %d superblock wipes failed)", wipeFailures, len(meta.Drives))
	}
	m.Complete(op.ID, true, result, nil)
}

// removeMdadmConf drops conf lines referencing the device's stable name.
func (m *Manager) removeMdadmConf(device string) error {
	return fsatomic.WithLock(m.mdadmConfPath, func() error {
		b, err := os.ReadFile(m.mdadmConfPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		lines := strings.Split(string(b), "\n")
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			if !strings.Contains(l, device) {
				out = append(out, l)
			}
		}
		return os.WriteFile(m.mdadmConfPath, []byte(strings.Join(out, "\n")), 0o644)
	})
}

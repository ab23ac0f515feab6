package operations

import (
	"context"
	"os"

	"ironnas/backend/irond/internal/pools"
)

// RunMount mounts an assembled pool at its recorded mount path and marks the
// metadata mounted. Intended to run as its own goroutine.
func (m *Manager) RunMount(opID, poolID string) {
	op := m.attach(opID, poolID, KindMountPool, "mount pool "+poolID, false)
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

	m.UpdateStatus(op.ID, StatusRunning, "mounting", 20)
	if err := os.MkdirAll(meta.MountPath, 0o755); err != nil {
		m.Complete(op.ID, false, "mkdir "+meta.MountPath+": "+err.Error(), nil)
		return
	}
	if code, out := m.run(context.Background(), "mount", device, meta.MountPath); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "saving metadata", 80)
	meta.IsMounted = true
	if err := m.meta.Update(meta); err != nil {
		m.Complete(op.ID, false, "saving metadata: "+err.Error(), nil)
		return
	}
	m.Complete(op.ID, true, "pool mounted at "+meta.MountPath, nil)
}

// RunUnmount unmounts a pool and clears the mounted flag. Intended to run as
// its own goroutine.
func (m *Manager) RunUnmount(opID, poolID string) {
	op := m.attach(opID, poolID, KindUnmountPool, "unmount pool "+poolID, false)
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

	m.UpdateStatus(op.ID, StatusRunning, "unmounting", 20)
	if code, out := m.run(context.Background(), "umount", meta.MountPath); code != 0 {
		m.Complete(op.ID, false, out, nil)
		return
	}

	m.UpdateStatus(op.ID, StatusRunning, "saving metadata", 80)
	meta.IsMounted = false
	if err := m.meta.Update(meta); err != nil {
		m.Complete(op.ID, false, "saving metadata: "+err.Error(), nil)
		return
	}
	m.Complete(op.ID, true, "pool unmounted", nil)
}

package pools

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"ironnas/backend/irond/internal/mdraid"
)

// Swapped in tests.
var (
	getArrays     = mdraid.GetArrays
	resolveDevice = filepath.EvalSymlinks
	diskUsage     = disk.Usage
)

// InfoService answers "what pools exist and what state are they in" by
// merging live mdstat facts, persisted metadata, and filesystem usage.
// It never mutates anything.
type InfoService struct {
	logger zerolog.Logger
	store  *Store
}

func NewInfoService(logger zerolog.Logger, store *Store) *InfoService {
	return &InfoService{
		logger: logger.With().Str("component", "pool-info").Logger(),
		store:  store,
	}
}

func (s *InfoService) List(ctx context.Context) ([]Pool, error) {
	metas, err := s.store.ListAll()
	if err != nil {
		return nil, err
	}
	arrays, err := getArrays(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("mdstat unavailable, reporting metadata only")
		arrays = nil
	}
	byKernelName := map[string]mdraid.Array{}
	for _, a := range arrays {
		byKernelName[a.Name] = a
	}

	out := make([]Pool, 0, len(metas))
	for _, meta := range metas {
		out = append(out, s.merge(meta, byKernelName))
	}
	return out, nil
}

func (s *InfoService) Get(ctx context.Context, guid string) (Pool, bool, error) {
	meta, ok, err := s.store.Get(guid)
	if err != nil || !ok {
		return Pool{}, ok, err
	}
	arrays, err := getArrays(ctx)
	if err != nil {
		arrays = nil
	}
	byKernelName := map[string]mdraid.Array{}
	for _, a := range arrays {
		byKernelName[a.Name] = a
	}
	return s.merge(meta, byKernelName), true, nil
}

func (s *InfoService) merge(meta Metadata, arrays map[string]mdraid.Array) Pool {
	p := Pool{
		GUID:      meta.GUID,
		Label:     meta.Label,
		MountPath: meta.MountPath,
		IsMounted: meta.IsMounted,
		RaidLevel: meta.RaidLevel,
		State:     "stopped",
		Drives:    meta.Drives,
		CreatedAt: meta.CreatedAt,
	}
	if stable, err := DeviceName(meta.GUID); err == nil {
		if kernel, err := resolveDevice(stable); err == nil {
			if a, ok := arrays[filepath.Base(kernel)]; ok {
				p.Device = kernel
				p.State = arrayState(a)
				p.Sync = a.Sync
			}
		}
	}
	if meta.IsMounted && meta.MountPath != "" {
		if u, err := diskUsage(meta.MountPath); err == nil {
			p.SizeBytes = u.Total
			p.UsedBytes = u.Used
			p.FreeBytes = u.Free
		} else {
			s.logger.Debug().Err(err).Str("pool", meta.GUID).Msg("usage lookup failed")
		}
	}
	return p
}

func arrayState(a mdraid.Array) string {
	switch {
	case !a.Active:
		return "stopped"
	case a.Sync != nil:
		return "syncing"
	case a.Degraded:
		return "degraded"
	default:
		return "active"
	}
}

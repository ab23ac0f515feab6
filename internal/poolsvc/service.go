// Package poolsvc is the single API surface the HTTP layer consumes: it
// validates preconditions, enforces one live operation per (pool, kind), and
// dispatches workflows to the operation manager in the background.
package poolsvc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ironnas/backend/irond/internal/drives"
	"ironnas/backend/irond/internal/operations"
	"ironnas/backend/irond/internal/pools"
)

var (
	ErrLabelRequired   = errors.New("pool label required")
	ErrLabelTaken      = errors.New("pool label already in use")
	ErrUnknownPool     = errors.New("unknown pool")
	ErrUnsupportedRAID = errors.New("unsupported raid level")
	ErrNotEnoughDrives = errors.New("not enough drives for raid level")
	ErrDriveNotFound   = errors.New("drive not found")
	ErrDriveInUse      = errors.New("drive is in use")
	ErrDriveUnstable   = errors.New("drive has no stable by-id path")
	ErrPoolMounted     = errors.New("pool is mounted")
	ErrPoolNotMounted  = errors.New("pool is not mounted")
	ErrBusy            = errors.New("operation already in progress for pool")
)

var minDrives = map[string]int{
	"raid0":  2,
	"raid1":  2,
	"raid5":  3,
	"raid6":  4,
	"raid10": 4,
}

type Service struct {
	logger  zerolog.Logger
	store   *pools.Store
	info    *pools.InfoService
	manager *operations.Manager

	// swapped in tests
	listDrives func(ctx context.Context) ([]drives.Drive, error)

	mountRoot string
}

func New(logger zerolog.Logger, store *pools.Store, info *pools.InfoService, manager *operations.Manager) *Service {
	return &Service{
		logger:     logger.With().Str("component", "pool-service").Logger(),
		store:      store,
		info:       info,
		manager:    manager,
		listDrives: drives.Collect,
		mountRoot:  "/srv/pools",
	}
}

type CreatePoolRequest struct {
	Label        string   `json:"label"`
	RaidLevel    string   `json:"raid_level"`
	DriveSerials []string `json:"drives"`
	MountPath    string   `json:"mount_path,omitempty"`
}

// CreatePool validates the request, allocates a pool GUID, registers the
// operation, and fires the create workflow. The returned operation is still
// pending; callers poll it by ID.
func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (operations.Operation, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return operations.Operation{}, ErrLabelRequired
	}
	level := strings.ToLower(strings.TrimSpace(req.RaidLevel))
	min, ok := minDrives[level]
	if !ok {
		return operations.Operation{}, fmt.Errorf("%w: %q", ErrUnsupportedRAID, req.RaidLevel)
	}
	if len(req.DriveSerials) < min {
		return operations.Operation{}, fmt.Errorf("%w: %s needs %d, got %d", ErrNotEnoughDrives, level, min, len(req.DriveSerials))
	}

	existing, err := s.store.ListAll()
	if err != nil {
		return operations.Operation{}, err
	}
	for _, m := range existing {
		if m.Label == label {
			return operations.Operation{}, fmt.Errorf("%w: %q", ErrLabelTaken, label)
		}
	}

	refs, err := s.resolveDrives(ctx, req.DriveSerials)
	if err != nil {
		return operations.Operation{}, err
	}

	guid := uuid.NewString()
	mount := strings.TrimSpace(req.MountPath)
	if mount == "" {
		mount = filepath.Join(s.mountRoot, label)
	}

	op := s.manager.Register(guid, operations.KindCreatePool,
		fmt.Sprintf("create pool %q (%s, %d drives)", label, level, len(refs)), true)
	go s.manager.RunCreate(op.ID, operations.CreateRequest{
		PoolID:    guid,
		Label:     label,
		RaidLevel: level,
		Drives:    refs,
		MountPath: mount,
	})
	s.logger.Info().Str("pool", guid).Str("label", label).Str("op", op.ID).Msg("create dispatched")
	return op, nil
}

func (s *Service) resolveDrives(ctx context.Context, serials []string) ([]pools.DriveRef, error) {
	all, err := s.listDrives(ctx)
	if err != nil {
		return nil, err
	}
	bySerial := map[string]drives.Drive{}
	for _, d := range all {
		if d.Serial != "" {
			bySerial[d.Serial] = d
		}
	}
	refs := make([]pools.DriveRef, 0, len(serials))
	for _, serial := range serials {
		d, ok := bySerial[serial]
		if !ok {
			return nil, fmt.Errorf("%w: serial %q", ErrDriveNotFound, serial)
		}
		if d.InUse() {
			return nil, fmt.Errorf("%w: %s", ErrDriveInUse, d.Path)
		}
		if d.ByIDPath == "" {
			return nil, fmt.Errorf("%w: %s", ErrDriveUnstable, d.Path)
		}
		refs = append(refs, pools.DriveRef{Serial: serial, DevicePath: d.ByIDPath, Label: d.Model})
	}
	return refs, nil
}

// RemovePool dispatches the remove workflow. The pool must be unmounted
// first; stopping an array under a live mount would fail anyway, so reject
// early with a clear error.
func (s *Service) RemovePool(ctx context.Context, guid string) (operations.Operation, error) {
	meta, ok, err := s.store.Get(guid)
	if err != nil {
		return operations.Operation{}, err
	}
	if !ok {
		return operations.Operation{}, fmt.Errorf("%w: %s", ErrUnknownPool, guid)
	}
	if meta.IsMounted {
		return operations.Operation{}, fmt.Errorf("%w: unmount before removal", ErrPoolMounted)
	}
	if s.manager.HasActive(guid, operations.KindRemovePool) {
		return operations.Operation{}, ErrBusy
	}
	op := s.manager.Register(guid, operations.KindRemovePool, fmt.Sprintf("remove pool %q", meta.Label), false)
	go s.manager.RunRemove(op.ID, guid)
	return op, nil
}

// MountPool dispatches the mount workflow.
func (s *Service) MountPool(ctx context.Context, guid string) (operations.Operation, error) {
	meta, ok, err := s.store.Get(guid)
	if err != nil {
		return operations.Operation{}, err
	}
	if !ok {
		return operations.Operation{}, fmt.Errorf("%w: %s", ErrUnknownPool, guid)
	}
	if meta.IsMounted {
		return operations.Operation{}, fmt.Errorf("%w: %s", ErrPoolMounted, meta.MountPath)
	}
	if s.manager.HasActive(guid, operations.KindMountPool) {
		return operations.Operation{}, ErrBusy
	}
	op := s.manager.Register(guid, operations.KindMountPool, fmt.Sprintf("mount pool %q", meta.Label), false)
	go s.manager.RunMount(op.ID, guid)
	return op, nil
}

// UnmountPool dispatches the unmount workflow.
func (s *Service) UnmountPool(ctx context.Context, guid string) (operations.Operation, error) {
	meta, ok, err := s.store.Get(guid)
	if err != nil {
		return operations.Operation{}, err
	}
	if !ok {
		return operations.Operation{}, fmt.Errorf("%w: %s", ErrUnknownPool, guid)
	}
	if !meta.IsMounted {
		return operations.Operation{}, ErrPoolNotMounted
	}
	if s.manager.HasActive(guid, operations.KindUnmountPool) {
		return operations.Operation{}, ErrBusy
	}
	op := s.manager.Register(guid, operations.KindUnmountPool, fmt.Sprintf("unmount pool %q", meta.Label), false)
	go s.manager.RunUnmount(op.ID, guid)
	return op, nil
}

// ForgetPool drops the metadata record without touching the array. It is the
// retry path when a remove operation stopped the array but failed to clear
// its record.
func (s *Service) ForgetPool(guid string) error {
	_, ok, err := s.store.Get(guid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, guid)
	}
	return s.store.Remove(guid)
}

func (s *Service) Pools(ctx context.Context) ([]pools.Pool, error) { return s.info.List(ctx) }

func (s *Service) Pool(ctx context.Context, guid string) (pools.Pool, bool, error) {
	return s.info.Get(ctx, guid)
}

func (s *Service) Drives(ctx context.Context) ([]drives.Drive, error) { return s.listDrives(ctx) }

func (s *Service) Operation(id string) (operations.Operation, bool) { return s.manager.Get(id) }

func (s *Service) Operations(includeCompleted bool) []operations.Operation {
	return s.manager.ListAll(includeCompleted)
}

func (s *Service) PoolOperations(guid string, includeCompleted bool) []operations.Operation {
	return s.manager.ListForPool(guid, includeCompleted)
}

func (s *Service) CancelOperation(id string) bool { return s.manager.Cancel(id) }

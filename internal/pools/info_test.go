package pools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"ironnas/backend/irond/internal/mdraid"
)

const infoGUID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

func TestDeviceName(t *testing.T) {
	dev, err := DeviceName(infoGUID)
	if err != nil {
		t.Fatal(err)
	}
	if dev != "/dev/md/3f2504e04f8941d39a0c0305e82c3301" {
		t.Fatalf("device name = %q", dev)
	}

	if _, err := DeviceName("not-a-guid"); !errors.Is(err, ErrBadGUID) {
		t.Fatalf("expected ErrBadGUID, got %v", err)
	}
}

func stubArrays(t *testing.T, arrays []mdraid.Array, resolveErr error) {
	t.Helper()
	origArrays, origResolve, origUsage := getArrays, resolveDevice, diskUsage
	t.Cleanup(func() {
		getArrays, resolveDevice, diskUsage = origArrays, origResolve, origUsage
	})
	getArrays = func(ctx context.Context) ([]mdraid.Array, error) { return arrays, nil }
	resolveDevice = func(path string) (string, error) {
		if resolveErr != nil {
			return "", resolveErr
		}
		return "/dev/md127", nil
	}
	diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Used: 400, Free: 600}, nil
	}
}

func seedInfoStore(t *testing.T, mounted bool) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	m := testMeta(infoGUID, "tank", time.Now().UTC())
	m.IsMounted = mounted
	if err := s.Update(m); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInfoMergesLiveArray(t *testing.T) {
	stubArrays(t, []mdraid.Array{{Name: "md127", Active: true}}, nil)
	svc := NewInfoService(zerolog.Nop(), seedInfoStore(t, true))

	p, ok, err := svc.Get(context.Background(), infoGUID)
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if p.State != "active" {
		t.Fatalf("state = %q, want active", p.State)
	}
	if p.Device != "/dev/md127" {
		t.Fatalf("device = %q", p.Device)
	}
	if p.SizeBytes != 1000 || p.UsedBytes != 400 || p.FreeBytes != 600 {
		t.Fatalf("usage = %d/%d/%d", p.SizeBytes, p.UsedBytes, p.FreeBytes)
	}
}

func TestInfoStateDerivation(t *testing.T) {
	cases := []struct {
		name  string
		array mdraid.Array
		want  string
	}{
		{"healthy", mdraid.Array{Name: "md127", Active: true}, "active"},
		{"degraded", mdraid.Array{Name: "md127", Active: true, Degraded: true}, "degraded"},
		{"syncing", mdraid.Array{Name: "md127", Active: true, Degraded: true, Sync: &mdraid.SyncProgress{Action: "recovery"}}, "syncing"},
		{"inactive", mdraid.Array{Name: "md127", Active: false}, "stopped"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubArrays(t, []mdraid.Array{tc.array}, nil)
			svc := NewInfoService(zerolog.Nop(), seedInfoStore(t, false))
			p, _, err := svc.Get(context.Background(), infoGUID)
			if err != nil {
				t.Fatal(err)
			}
			if p.State != tc.want {
				t.Fatalf("state = %q, want %q", p.State, tc.want)
			}
		})
	}
}

func TestInfoStoppedWhenDeviceMissing(t *testing.T) {
	stubArrays(t, []mdraid.Array{{Name: "md127", Active: true}}, errors.New("no such file"))
	svc := NewInfoService(zerolog.Nop(), seedInfoStore(t, false))

	pools, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pools) != 1 {
		t.Fatalf("pool count = %d", len(pools))
	}
	if pools[0].State != "stopped" || pools[0].Device != "" {
		t.Fatalf("unresolvable device should report stopped: %+v", pools[0])
	}
	if pools[0].SizeBytes != 0 {
		t.Fatal("unmounted pool should not report usage")
	}
}

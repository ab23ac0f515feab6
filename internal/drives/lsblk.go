package drives

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"ironnas/backend/irond/pkg/shell"
)

type lsblkJSON struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Size       any           `json:"size"`
	Rota       *bool         `json:"rota"`
	Type       string        `json:"type"`
	Tran       string        `json:"tran"`
	Vendor     string        `json:"vendor"`
	Model      string        `json:"model"`
	Serial     string        `json:"serial"`
	Mountpoint *string       `json:"mountpoint"`
	FSType     string        `json:"fstype"`
	Children   []lsblkDevice `json:"children"`
}

func parseSizeToBytes(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// byIDDir is swapped in tests.
var byIDDir = "/dev/disk/by-id"

// Collect enumerates disks and partitions via lsblk, annotated with the
// stable /dev/disk/by-id path when one resolves.
func Collect(ctx context.Context) ([]Drive, error) {
	args := []string{"--bytes", "-J", "-O", "-o", "NAME,PATH,SIZE,ROTA,TYPE,TRAN,VENDOR,MODEL,SERIAL,MOUNTPOINT,FSTYPE"}
	res, err := shell.Run(ctx, 5*time.Second, "lsblk", args...)
	if err != nil {
		return nil, err
	}
	var tree lsblkJSON
	if err := json.Unmarshal(res.Stdout, &tree); err != nil {
		return nil, fmt.Errorf("lsblk json: %w", err)
	}
	out := flatten(tree)
	links := byIDLinks(byIDDir)
	for i := range out {
		out[i].ByIDPath = links[out[i].Path]
	}
	return out, nil
}

func flatten(tree lsblkJSON) []Drive {
	out := []Drive{}
	var walk func(d lsblkDevice)
	walk = func(d lsblkDevice) {
		if d.Type == "disk" || d.Type == "part" {
			path := d.Path
			if path == "" {
				path = "/dev/" + d.Name
			}
			out = append(out, Drive{
				Name:       d.Name,
				Path:       path,
				SizeBytes:  parseSizeToBytes(d.Size),
				Rota:       d.Rota,
				Type:       d.Type,
				Tran:       d.Tran,
				Vendor:     d.Vendor,
				Model:      d.Model,
				Serial:     d.Serial,
				Mountpoint: d.Mountpoint,
				FSType:     d.FSType,
			})
		}
		for _, c := range d.Children {
			walk(c)
		}
	}
	for _, d := range tree.Blockdevices {
		walk(d)
	}
	return out
}

// byIDLinks maps resolved device paths to their /dev/disk/by-id symlink.
// wwn- links are skipped in favour of the model-serial form when both exist.
func byIDLinks(dir string) map[string]string {
	out := map[string]string{}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range ents {
		link := filepath.Join(dir, e.Name())
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		if prev, ok := out[target]; ok && !isWWN(prev) {
			continue
		}
		out[target] = link
	}
	return out
}

func isWWN(link string) bool {
	base := filepath.Base(link)
	return len(base) > 4 && base[:4] == "wwn-"
}

// smartFor is swapped in tests.
var smartFor = SmartSummaryFor

// AnnotateSmart fills the Smart summary on whole disks. Partitions are
// skipped; smartctl reports per device, not per partition.
func AnnotateSmart(ctx context.Context, ds []Drive) {
	for i := range ds {
		if ds[i].Type != "disk" {
			continue
		}
		ds[i].Smart = smartFor(ctx, ds[i].Path)
	}
}

// SmartSummaryFor shells smartctl when present; nil when no data is available.
func SmartSummaryFor(ctx context.Context, devicePath string) *SmartSummary {
	if _, err := exec.LookPath("smartctl"); err != nil {
		return nil
	}
	res, err := shell.Run(ctx, 3*time.Second, "smartctl", "-H", "-A", devicePath, "-j")
	if err != nil {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(res.Stdout, &parsed); err != nil {
		return nil
	}
	var healthy *bool
	if s, ok := parsed["smart_status"].(map[string]any); ok {
		if p, ok := s["passed"].(bool); ok {
			healthy = &p
		}
	}
	var temp *int
	if t, ok := parsed["temperature"].(map[string]any); ok {
		if c, ok := t["current"].(float64); ok {
			v := int(c)
			temp = &v
		}
	}
	var poh *int
	if a, ok := parsed["power_on_time"].(map[string]any); ok {
		if h, ok := a["hours"].(float64); ok {
			v := int(h)
			poh = &v
		}
	}
	if healthy == nil && temp == nil && poh == nil {
		return nil
	}
	return &SmartSummary{Healthy: healthy, TempCelsius: temp, PowerOnHours: poh}
}

package mdraid

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ironnas/backend/irond/pkg/shell"
)

var mdstatPath = "/proc/mdstat"

var (
	arrayLineRe  = regexp.MustCompile(`^(md\d+)\s*:\s*(active|inactive)\s*(\([^)]*\)\s*)?(\S+)?\s*(.*)$`)
	memberRe     = regexp.MustCompile(`(\S+?)\[(\d+)\](\([A-Z]\))*`)
	countsRe     = regexp.MustCompile(`\[(\d+)/(\d+)\]\s*\[([U_]+)\]`)
	progressRe   = regexp.MustCompile(`(resync|recovery|check|reshape)\s*=\s*([0-9.]+)%`)
	finishRe     = regexp.MustCompile(`finish=([0-9.]+)min`)
	speedRe      = regexp.MustCompile(`speed=(\d+)K/sec`)
	detailUUIDRe = regexp.MustCompile(`(?m)^\s*UUID\s*:\s*(\S+)`)
	detailStatRe = regexp.MustCompile(`(?m)^\s*State\s*:\s*(.+?)\s*$`)
)

// ParseMdstat reads /proc/mdstat content and returns the arrays it describes.
func ParseMdstat(r io.Reader) ([]Array, error) {
	arrays := []Array{}
	var cur *Array
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := arrayLineRe.FindStringSubmatch(line); m != nil {
			level, rest := m[4], m[5]
			// Inactive arrays list members with no level token.
			if strings.Contains(level, "[") {
				rest = level + " " + rest
				level = ""
			}
			arrays = append(arrays, Array{
				Name:    m[1],
				Active:  m[2] == "active",
				Level:   level,
				Members: parseMembers(rest),
			})
			cur = &arrays[len(arrays)-1]
			continue
		}
		if cur == nil {
			continue
		}
		if m := countsRe.FindStringSubmatch(line); m != nil {
			cur.TotalDevices, _ = strconv.Atoi(m[1])
			cur.ActiveDevices, _ = strconv.Atoi(m[2])
			cur.Degraded = strings.Contains(m[3], "_")
		}
		if m := progressRe.FindStringSubmatch(line); m != nil {
			p := &SyncProgress{Action: m[1]}
			p.Percent, _ = strconv.ParseFloat(m[2], 64)
			if fm := finishRe.FindStringSubmatch(line); fm != nil {
				p.FinishMins, _ = strconv.ParseFloat(fm[1], 64)
			}
			if sm := speedRe.FindStringSubmatch(line); sm != nil {
				p.SpeedKBps, _ = strconv.ParseInt(sm[1], 10, 64)
			}
			cur.Sync = p
		}
		if strings.TrimSpace(line) == "" {
			cur = nil
		}
	}
	return arrays, sc.Err()
}

func parseMembers(s string) []Member {
	out := []Member{}
	for _, m := range memberRe.FindAllStringSubmatch(s, -1) {
		role, _ := strconv.Atoi(m[2])
		mem := Member{Name: m[1], Role: role}
		mem.Faulty = strings.Contains(m[0], "(F)")
		mem.Spare = strings.Contains(m[0], "(S)")
		out = append(out, mem)
	}
	return out
}

// mdadmDetail is swapped in tests to avoid shelling out.
var mdadmDetail = func(ctx context.Context, device string) (string, error) {
	res, err := shell.Run(ctx, 5*time.Second, "mdadm", "--detail", device)
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

// GetArrays reads /proc/mdstat and enriches each array with UUID and state
// from mdadm --detail. Detail failures leave those fields empty; the mdstat
// facts alone are still useful.
func GetArrays(ctx context.Context) ([]Array, error) {
	f, err := os.Open(mdstatPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	arrays, err := ParseMdstat(f)
	if err != nil {
		return nil, err
	}
	for i := range arrays {
		out, err := mdadmDetail(ctx, arrays[i].DevicePath())
		if err != nil {
			continue
		}
		if m := detailUUIDRe.FindStringSubmatch(out); m != nil {
			arrays[i].UUID = m[1]
		}
		if m := detailStatRe.FindStringSubmatch(out); m != nil {
			arrays[i].State = m[1]
		}
	}
	return arrays, nil
}

// ScanLine returns the mdadm --detail --scan line for one array, the form
// appended to mdadm.conf so the array reassembles on boot.
func ScanLine(ctx context.Context, device string) (string, error) {
	res, err := shell.Run(ctx, 5*time.Second, "mdadm", "--detail", "--scan", device)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

package geoip

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ipRange is an inclusive [start, end] address range tagged with an ISO
// alpha-2 country code. start/end are always 4 or 16 bytes and are
// compared byte-wise, so both endpoints of a range must be the same
// address family.
type ipRange struct {
	start, end []byte
	country    string
}

// rangeTable is a parsed legacy geoip/geoip6 pair: a flat list of
// address ranges per family, scanned linearly on lookup. The legacy
// format is small enough (tens of thousands of lines at most) that a
// linear scan is adequate; nothing in the specification calls for a
// sorted/binary-searched structure.
type rangeTable struct {
	v4 []ipRange
	v6 []ipRange
}

func (t *rangeTable) lookup(ip net.IP) (string, bool) {
	if v4 := ip.To4(); v4 != nil {
		return lookupIn(t.v4, []byte(v4))
	}
	return lookupIn(t.v6, []byte(ip.To16()))
}

func lookupIn(ranges []ipRange, ip []byte) (string, bool) {
	for _, r := range ranges {
		if len(r.start) != len(ip) {
			continue
		}
		if compareBytes(ip, r.start) >= 0 && compareBytes(ip, r.end) <= 0 {
			return r.country, true
		}
	}
	return "", false
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// loadRangeTableDir loads the legacy "geoip" and "geoip6" files from dir.
// At least one of the two files must be readable and parse to a
// non-error result; otherwise the caller should fall back to the
// embedded database.
func loadRangeTableDir(dir string) (*rangeTable, error) {
	v4, err4 := parseRangeFile(filepath.Join(dir, "geoip"))
	v6, err6 := parseRangeFile(filepath.Join(dir, "geoip6"))
	if err4 != nil && err6 != nil {
		return nil, fmt.Errorf("geoip: neither geoip nor geoip6 readable in %s: %v / %v", dir, err4, err6)
	}
	return &rangeTable{v4: v4, v6: v6}, nil
}

func parseRangeFile(path string) ([]ipRange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseRangeLines(f)
}

func parseRangeLines(r io.Reader) ([]ipRange, error) {
	scanner := bufio.NewScanner(r)
	var ranges []ipRange
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rng, err := parseRangeLine(line)
		if err != nil {
			continue
		}
		ranges = append(ranges, rng)
	}
	return ranges, scanner.Err()
}

func parseRangeLine(line string) (ipRange, error) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return ipRange{}, fmt.Errorf("malformed range line: %q", line)
	}
	start, err := parseRangeBound(strings.TrimSpace(parts[0]))
	if err != nil {
		return ipRange{}, err
	}
	end, err := parseRangeBound(strings.TrimSpace(parts[1]))
	if err != nil {
		return ipRange{}, err
	}
	if len(start) != len(end) {
		return ipRange{}, fmt.Errorf("range bounds have mismatched families: %q", line)
	}
	cc := strings.ToUpper(strings.TrimSpace(parts[2]))
	return ipRange{start: start, end: end, country: cc}, nil
}

// parseRangeBound accepts either a dotted/colon IP literal or a decimal
// integer (the classic Tor geoip IPv4 encoding).
func parseRangeBound(s string) ([]byte, error) {
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return []byte(v4), nil
		}
		return []byte(ip.To16()), nil
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid range bound %q", s)
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b, nil
}

// Package script parses and replays .script workload files: line-oriented
// allocator request traces where each line asks for an allocation, a resize,
// or a release of a numbered block.
package script

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/treealloc/treealloc/block"
)

// Op is the request kind on one script line.
type Op uint8

const (
	OpAlloc Op = iota
	OpRealloc
	OpFree
)

func (o Op) String() string {
	switch o {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	default:
		return "free"
	}
}

// Request is one parsed script line. ID names the block for later requests;
// Size is the payload byte count and is zero for a free.
type Request struct {
	Op     Op
	ID     int32
	Size   int
	Lineno int
}

// Script is a parsed workload: an ordered request list plus the number of
// distinct block ids it uses.
type Script struct {
	Name     string
	Requests []Request
	IDCount  int32
}

// ParseFile reads and parses the .script file at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening script %q", path)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), ".script")
	return Parse(f, name)
}

// Parse reads a script from r. Blank lines and lines whose first
// non-whitespace character is '#' are skipped. Every other line must be
// "a <id> <size>", "r <id> <size>", or "f <id>".
func Parse(r io.Reader, name string) (*Script, error) {
	s := &Script{Name: name}
	scanner := bufio.NewScanner(r)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		req, err := parseLine(line, lineno)
		if err != nil {
			return nil, err
		}
		if req.ID >= s.IDCount {
			s.IDCount = req.ID + 1
		}
		s.Requests = append(s.Requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading script %q", name)
	}
	return s, nil
}

func parseLine(line string, lineno int) (Request, error) {
	fields := strings.Fields(line)

	req := Request{Lineno: lineno}
	switch {
	case fields[0] == "a" && len(fields) == 3:
		req.Op = OpAlloc
	case fields[0] == "r" && len(fields) == 3:
		req.Op = OpRealloc
	case fields[0] == "f" && len(fields) == 2:
		req.Op = OpFree
	default:
		return Request{}, errors.Newf("line %d: malformed request %q", lineno, line)
	}

	id, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return Request{}, errors.Wrapf(err, "line %d: block id %q", lineno, fields[1])
	}
	req.ID = int32(id)

	if req.Op != OpFree {
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return Request{}, errors.Wrapf(err, "line %d: request size %q", lineno, fields[2])
		}
		req.Size = size
	}

	if req.ID < 0 {
		return Request{}, errors.Newf("line %d: negative block id %d", lineno, req.ID)
	}
	if req.Op != OpFree && (req.Size <= 0 || req.Size > block.MaxRequest) {
		return Request{}, errors.Newf("line %d: request size %d out of range", lineno, req.Size)
	}
	return req, nil
}

// Package hostsfile parses the flat hosts file consumed by the cache's
// startup seeding step (§4.6): whitespace-separated "domain ip" pairs, one
// per line, comments and blank lines skipped. This is an external
// collaborator, not part of the core — the core only ever sees the
// resulting (domain, ip_text) pairs.
package hostsfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nodns-go/nodns/internal/cache"
)

// Load reads path and returns one cache.HostEntry per "domain ip" line.
func Load(path string) ([]cache.HostEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads hosts-file lines from r. Text from the first '#' to the end of
// a line is a comment and is dropped; lines left blank after that are
// skipped.
func Parse(r io.Reader) ([]cache.HostEntry, error) {
	var entries []cache.HostEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("hostsfile: line %d: want \"domain ip\", got %q", lineNo, line)
		}
		entries = append(entries, cache.HostEntry{Domain: fields[0], IPText: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

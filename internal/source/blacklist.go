package source

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charliek/logdog/internal/domain"
)

// Blacklist is an ordered list of patterns. A line is blacklisted when any
// pattern matches anywhere within it. Blacklist is not synchronized; a
// Source guards its blacklist with the same lock as its listeners.
type Blacklist struct {
	sources  []string
	patterns []*regexp.Regexp
}

// Add compiles and appends pattern. Blank or invalid patterns are rejected
// and leave the list unchanged.
func (b *Blacklist) Add(pattern string) bool {
	return b.add(pattern) == nil
}

func (b *Blacklist) add(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", domain.ErrInvalidPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
	}
	b.sources = append(b.sources, pattern)
	b.patterns = append(b.patterns, re)
	return nil
}

// ReplaceAll clears the list and adds one pattern per line of text. Blank
// lines and invalid patterns are skipped. It returns the number of patterns
// kept.
func (b *Blacklist) ReplaceAll(text string) int {
	b.Clear()
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_ = b.add(line)
	}
	return len(b.patterns)
}

// Load clears the list and reads one pattern per line from r. Blank lines
// are skipped. It returns -1 on success, otherwise the 0-based number of
// the first line that does not compile; patterns before it are kept.
func (b *Blacklist) Load(r io.Reader) (int, error) {
	b.Clear()

	scanner := bufio.NewScanner(r)
	line := -1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := b.add(text); err != nil {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return -1, fmt.Errorf("%w: reading blacklist: %v", domain.ErrStorage, err)
	}
	return -1, nil
}

// Clear removes every pattern
func (b *Blacklist) Clear() {
	b.sources = nil
	b.patterns = nil
}

// Found reports whether any pattern matches within line
func (b *Blacklist) Found(line string) bool {
	for _, re := range b.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns
func (b *Blacklist) Len() int {
	return len(b.patterns)
}

// String returns the raw pattern text, one per line
func (b *Blacklist) String() string {
	return strings.Join(b.sources, "\n")
}

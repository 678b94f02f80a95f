// Package badwords screens free text that renters submit and that ends up
// in front of caretakers and in outbound mail.
package badwords

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joy095/hallbooking/logger"
)

// Filter is a case-insensitive set of blocked words. The zero value blocks
// nothing.
type Filter struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

func New(words ...string) *Filter {
	f := &Filter{}
	f.Replace(words)
	return f
}

// LoadFile reads one word per line. Blank lines and lines starting with #
// are skipped.
func LoadFile(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bad words file: %w", err)
	}
	defer file.Close()

	f := &Filter{}
	if err := f.ReadFrom(file); err != nil {
		return nil, err
	}
	logger.InfoLogger.Infof("Loaded %d bad words from %s", f.Len(), path)
	return f, nil
}

func (f *Filter) ReadFrom(r io.Reader) error {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read bad words: %w", err)
	}
	f.Replace(words)
	return nil
}

// Replace swaps the whole list.
func (f *Filter) Replace(words []string) {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			m[w] = struct{}{}
		}
	}
	f.mu.Lock()
	f.words = m
	f.mu.Unlock()
}

func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.words)
}

// Contains reports whether any word of text is blocked. Words are split on
// anything that is not a letter or digit.
func (f *Filter) Contains(text string) bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.words) == 0 {
		return false
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, w := range words {
		if _, found := f.words[w]; found {
			return true
		}
	}
	return false
}

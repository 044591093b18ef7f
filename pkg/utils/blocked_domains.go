package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"car-advisor/internal/logging"
)

// BlockedDomains remembers marketplace hosts that answer plain HTTP requests with
// an anti-bot challenge. With a file path the list survives restarts.
type BlockedDomains struct {
	path    string
	domains map[string]time.Time // host -> first blocked
	mu      sync.RWMutex
	logger  logging.Logger
}

// NewBlockedDomains loads the list from path; an empty path keeps it in memory only
func NewBlockedDomains(path string) *BlockedDomains {
	b := &BlockedDomains{
		path:    path,
		domains: make(map[string]time.Time),
		logger:  logging.GetGlobalLogger().WithField("component", "blocked_domains"),
	}
	if err := b.load(); err != nil {
		b.logger.Error("Failed to load blocked domains", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
	}
	return b
}

// IsBlocked reports whether the host of rawURL is on the list
func (b *BlockedDomains) IsBlocked(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.domains[host]
	return ok
}

// Add puts the host of rawURL on the list
func (b *BlockedDomains) Add(rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.domains[host]; ok {
		return nil
	}
	b.domains[host] = time.Now()
	b.logger.Info("Domain marked as blocking plain requests", map[string]interface{}{
		"domain": host,
		"total":  len(b.domains),
	})
	return b.save()
}

// Domains returns the blocked hosts in alphabetical order
func (b *BlockedDomains) Domains() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.domains))
	for host := range b.domains {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

// load reads "host<TAB>RFC3339" lines; '#' starts a comment
func (b *BlockedDomains) load() error {
	if b.path == "" {
		return nil
	}
	file, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open blocked domains file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		seen := time.Now()
		if len(parts) > 1 {
			if t, err := time.Parse(time.RFC3339, parts[1]); err == nil {
				seen = t
			}
		}
		b.domains[strings.ToLower(parts[0])] = seen
	}
	return scanner.Err()
}

// save must be called with the lock held
func (b *BlockedDomains) save() error {
	if b.path == "" {
		return nil
	}
	file, err := os.Create(b.path)
	if err != nil {
		return fmt.Errorf("failed to write blocked domains file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "# Hosts that block plain HTTP scraping (managed automatically)\n")
	for host, seen := range b.domains {
		fmt.Fprintf(file, "%s\t%s\n", host, seen.Format(time.RFC3339))
	}
	return nil
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("no hostname in URL %q", rawURL)
	}
	return host, nil
}

package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLabels reads one label per line. Blank lines are skipped and line
// order defines the category index. On a read error the labels before the
// failing line are returned along with the error.
func ParseLabels(r io.Reader) ([]string, error) {
	labels := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return labels, fmt.Errorf("failed to read labels after %d entries: %w", len(labels), err)
	}
	return labels, nil
}

// LoadLabels never fails: a missing file yields an empty label set and a
// truncated read keeps what was parsed. Categories without a label come out
// unlabeled. Both cases are logged as warnings.
func LoadLabels(path string, log logrus.FieldLogger) []string {
	f, err := os.Open(path)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("path", path).Warn("labels unavailable, continuing without labels")
		}
		return []string{}
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil && log != nil {
		log.WithError(err).WithField("path", path).Warn("label file partially read")
	}
	return labels
}

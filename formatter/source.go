package formatter

import (
	"os"
	"strings"
)

// SourceCode stores the lines of a rule file.
type SourceCode struct {
	Lines []string
}

// NewSourceCode splits src into lines.
func NewSourceCode(src []byte) *SourceCode {
	lines := strings.Split(string(src), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return &SourceCode{Lines: lines}
}

// ReadSourceCode reads the file and returns its lines.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

package generate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gnolang/tlex/internal/charset"
	"github.com/gnolang/tlex/internal/tables"
)

var (
	ErrUnknownOption  = errors.New("unknown option")
	ErrAlphabetLocked = errors.New("alphabet locked")
	ErrInconsistent   = errors.New("inconsistent option")
	ErrOptionValue    = errors.New("invalid option value")
)

// Options controls one generator run. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	Unicode         bool   `yaml:"unicode"`
	Classes         bool   `yaml:"classes"`
	CaseInsensitive bool   `yaml:"caseInsensitive"`
	Minimize        bool   `yaml:"minimize"`
	CompressMap     bool   `yaml:"compressMap"`
	CompressNext    bool   `yaml:"compressNext"`
	Squeeze         bool   `yaml:"squeeze"`
	Stack           bool   `yaml:"stack"`
	Check           bool   `yaml:"check"`
	ParseOnly       bool   `yaml:"parseOnly"`
	Verbose         bool   `yaml:"verbose"`
	Summary         bool   `yaml:"summary"`
	Listing         bool   `yaml:"listing"`
	Info            bool   `yaml:"info"`
	Namespace       string `yaml:"namespace,omitempty"`
	Class           string `yaml:"class,omitempty"`
	CodePage        string `yaml:"codePage,omitempty"`
	Output          string `yaml:"output,omitempty"`

	compressMapSet bool
	cardinality    int // 0 until the alphabet is locked
}

// DefaultOptions returns the options used when nothing is set.
func DefaultOptions() Options {
	return Options{
		Minimize:     true,
		CompressNext: true,
		Info:         true,
	}
}

// Set applies one option. Names are case-insensitive and a "no" prefix
// negates a boolean option, as does a false value. For string options
// value must be a string.
func (o *Options) Set(name string, value interface{}) error {
	key := strings.ToLower(name)
	switch key {
	case "namespace", "class", "codepage", "output":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s needs a string, got %v", ErrOptionValue, name, value)
		}
		o.setString(key, s)
		return nil
	}

	on := true
	if b, ok := value.(bool); ok {
		on = b
	} else if value != nil {
		return fmt.Errorf("%w: %s needs a boolean, got %v", ErrOptionValue, name, value)
	}
	if strings.HasPrefix(key, "no") {
		key = key[2:]
		on = !on
	}
	return o.setBool(key, name, on)
}

func (o *Options) setString(key, s string) {
	switch key {
	case "namespace":
		o.Namespace = s
	case "class":
		o.Class = s
	case "codepage":
		o.CodePage = s
	case "output":
		o.Output = s
	}
}

func (o *Options) setBool(key, name string, on bool) error {
	switch {
	case key == "unicode":
		return o.setUnicode(on)
	case key == "classes":
		if !on && o.Unicode {
			return fmt.Errorf("%w: %s with unicode", ErrInconsistent, name)
		}
		o.Classes = on
	case key == "ignorecase" || strings.HasPrefix(key, "caseinsen"):
		o.CaseInsensitive = on
	case key == "minimize":
		o.Minimize = on
	case key == "compressmap":
		o.CompressMap = on
		o.compressMapSet = true
	case key == "compressnext":
		o.CompressNext = on
	case key == "compress":
		o.CompressMap, o.CompressNext = on, on
		o.compressMapSet = true
	case key == "squeeze":
		o.Squeeze, o.CompressMap, o.CompressNext = on, on, on
		o.compressMapSet = true
	case key == "stack":
		o.Stack = on
	case key == "check":
		o.Check = on
	case key == "parseonly":
		o.ParseOnly = on
	case key == "verbose":
		o.Verbose = on
	case key == "summary":
		o.Summary = on
	case strings.HasPrefix(key, "list"):
		o.Listing = on
	case key == "info":
		o.Info = on
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	return nil
}

// setUnicode fixes the alphabet. Once it is fixed, asking for the other
// alphabet is an error.
func (o *Options) setUnicode(on bool) error {
	card := charset.ByteCardinality
	if on {
		card = charset.UnicodeCardinality
	}
	if o.cardinality != 0 && o.cardinality != card {
		return fmt.Errorf("%w: the alphabet already has %d symbols", ErrAlphabetLocked, o.cardinality)
	}
	o.cardinality = card
	o.Unicode = on
	if on {
		o.Classes = true
		if !o.compressMapSet {
			o.CompressMap = true
		}
	}
	return nil
}

// Parse applies an option written as "name" or "name=value".
func (o *Options) Parse(arg string) error {
	name, value, found := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !found {
		return o.Set(name, nil)
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "true", "on", "yes":
		return o.Set(name, true)
	case "false", "off", "no":
		return o.Set(name, false)
	}
	return o.Set(name, value)
}

// Lock fixes the alphabet to the current setting.
func (o *Options) Lock() {
	if o.cardinality == 0 {
		o.cardinality = o.Cardinality()
	}
}

// Cardinality returns the size of the alphabet.
func (o Options) Cardinality() int {
	if o.Unicode {
		return charset.UnicodeCardinality
	}
	return charset.ByteCardinality
}

// EffectiveCompressMap reports whether the class map gets compressed. A
// byte alphabet keeps its dense map unless compression was asked for.
func (o Options) EffectiveCompressMap() bool {
	if o.Unicode || o.compressMapSet {
		return o.CompressMap
	}
	return false
}

// Tables returns the encodings to build.
func (o Options) Tables() tables.Options {
	return tables.Options{
		CompressMap:  o.EffectiveCompressMap(),
		CompressNext: o.CompressNext,
		Squeeze:      o.Squeeze,
	}
}

// Summarize lists the options that shape the emitted scanner.
func (o Options) Summarize() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(o.Unicode, "unicode")
	add(o.Classes, "classes")
	add(o.CaseInsensitive, "caseInsensitive")
	add(o.Minimize, "minimize")
	add(o.EffectiveCompressMap(), "compressMap")
	add(o.CompressNext, "compressNext")
	add(o.Squeeze, "squeeze")
	add(o.Stack, "stack")
	if o.CodePage != "" {
		out = append(out, "codePage="+o.CodePage)
	}
	return out
}

// Names lists every option name accepted by Set.
func Names() []string {
	return []string{
		"unicode", "classes", "caseInsensitive", "ignoreCase", "minimize",
		"compressMap", "compressNext", "compress", "squeeze", "stack",
		"check", "parseOnly", "verbose", "summary", "listing", "info",
		"namespace", "class", "codePage", "output",
	}
}

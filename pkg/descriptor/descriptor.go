// Package descriptor reads Jenkins build.xml files.
package descriptor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrParse is matched by every error returned from Read and Parse.
var ErrParse = errors.New("descriptor parse error")

// ParseError describes a descriptor that is missing, truncated or does not
// carry the required fields.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing descriptor: %v", e.Err)
	}

	return fmt.Sprintf("parsing descriptor %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) true for every ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Descriptor is the part of a build descriptor the report needs.
type Descriptor struct {
	Result       string
	TestsRun     int
	TestsFailed  int
	TestsSkipped int
	DurationMS   int64
	// Number is -1 when the descriptor does not record it.
	Number int
	// StartTime is zero when the descriptor does not record it.
	StartTime time.Time
	// HasTestReport is false when the build never published test results.
	HasTestReport bool
}

type buildXML struct {
	Actions struct {
		JUnit *junitActionXML `xml:"hudson.tasks.junit.TestResultAction"`
	} `xml:"actions"`
	Number    *int    `xml:"number"`
	StartTime *int64  `xml:"startTime"`
	Result    *string `xml:"result"`
	Duration  *int64  `xml:"duration"`
}

type junitActionXML struct {
	FailCount  int `xml:"failCount"`
	SkipCount  int `xml:"skipCount"`
	TotalCount int `xml:"totalCount"`
}

// Read parses the descriptor at path.
func Read(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the job tree
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	d, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}

		return nil, err
	}

	return d, nil
}

// Parse decodes descriptor content. The root element name is not checked:
// matrix runs, freestyle and maven builds share the fields read here.
func Parse(data []byte) (*Descriptor, error) {
	var raw buildXML

	dec := xml.NewDecoder(bytes.NewReader(normalizeProlog(data)))
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("decoding xml: %w", err)}
	}

	if raw.Result == nil || strings.TrimSpace(*raw.Result) == "" {
		return nil, &ParseError{Err: errors.New("missing <result>")}
	}

	if raw.Duration == nil {
		return nil, &ParseError{Err: errors.New("missing <duration>")}
	}

	if *raw.Duration < 0 {
		return nil, &ParseError{Err: fmt.Errorf("negative duration %d", *raw.Duration)}
	}

	d := &Descriptor{
		Result:     strings.TrimSpace(*raw.Result),
		DurationMS: *raw.Duration,
		Number:     -1,
	}

	if raw.Number != nil {
		d.Number = *raw.Number
	}

	if raw.StartTime != nil && *raw.StartTime > 0 {
		d.StartTime = time.UnixMilli(*raw.StartTime)
	}

	if j := raw.Actions.JUnit; j != nil {
		if j.TotalCount < 0 || j.FailCount < 0 || j.SkipCount < 0 {
			return nil, &ParseError{Err: errors.New("negative test count")}
		}

		if j.FailCount > j.TotalCount {
			return nil, &ParseError{Err: fmt.Errorf(
				"failed count %d exceeds total count %d", j.FailCount, j.TotalCount,
			)}
		}

		d.HasTestReport = true
		d.TestsRun = j.TotalCount
		d.TestsFailed = j.FailCount
		d.TestsSkipped = j.SkipCount
	}

	return d, nil
}

// controlCharRef matches a numeric character reference.
var controlCharRef = regexp.MustCompile(`&#(?:[xX]([0-9a-fA-F]+)|([0-9]+));`)

// normalizeProlog rewrites an XML 1.1 declaration, as written by newer
// Jenkins versions, to 1.0, which is the only version encoding/xml accepts.
// References to C0 control characters, legal only in 1.1, become U+FFFD.
func normalizeProlog(data []byte) []byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return data
	}

	end := bytes.Index(trimmed, []byte("?>"))
	if end < 0 {
		return data
	}

	prolog := trimmed[:end]

	fixed := bytes.Replace(prolog, []byte(`version='1.1'`), []byte(`version='1.0'`), 1)
	fixed = bytes.Replace(fixed, []byte(`version="1.1"`), []byte(`version="1.0"`), 1)

	if bytes.Equal(fixed, prolog) {
		return data
	}

	out := make([]byte, 0, len(trimmed))
	out = append(out, fixed...)
	out = append(out, trimmed[end:]...)

	return controlCharRef.ReplaceAllFunc(out, replaceControlRef)
}

func replaceControlRef(ref []byte) []byte {
	m := controlCharRef.FindSubmatch(ref)

	var (
		n   uint64
		err error
	)

	if len(m[1]) > 0 {
		n, err = strconv.ParseUint(string(m[1]), 16, 32)
	} else {
		n, err = strconv.ParseUint(string(m[2]), 10, 32)
	}

	if err != nil || n >= 0x20 || n == '\t' || n == '\n' || n == '\r' {
		return ref
	}

	return []byte("&#xFFFD;")
}

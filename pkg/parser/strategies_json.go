package parser

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// stdoutJSONStrategy treats xTB's full stdout as authoritative when it
// parses whole as a JSON object (spec §4.3, strategy 1).
type stdoutJSONStrategy struct{}

func (stdoutJSONStrategy) Name() string { return "stdout_json" }

func (stdoutJSONStrategy) TryParse(stdout []byte, _ string) (*Result, bool) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}

	result := canonicalFromMap(m)
	if result.Energy == nil {
		return nil, false
	}
	return result, true
}

// xtboutFileStrategy reads xtbout.json from the working directory when
// present (spec §4.3, strategy 2).
type xtboutFileStrategy struct{}

func (xtboutFileStrategy) Name() string { return "xtbout_json_file" }

func (xtboutFileStrategy) TryParse(_ []byte, workDir string) (*Result, bool) {
	if workDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(workDir, "xtbout.json"))
	if err != nil {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}

	result := canonicalFromMap(m)
	if result.Energy == nil {
		return nil, false
	}
	return result, true
}

// jsonFragmentStrategy scans stdout for the first balanced {...} block and
// attempts to parse it as JSON (spec §4.3, strategy 3), for output that
// interleaves log lines with an embedded JSON summary.
type jsonFragmentStrategy struct{}

func (jsonFragmentStrategy) Name() string { return "json_fragment" }

func (jsonFragmentStrategy) TryParse(stdout []byte, _ string) (*Result, bool) {
	fragment, ok := extractBalancedObject(stdout)
	if !ok {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(fragment))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}

	result := canonicalFromMap(m)
	if result.Energy == nil {
		return nil, false
	}
	return result, true
}

// extractBalancedObject returns the first top-level-balanced {...} span in
// data, ignoring braces inside string literals.
func extractBalancedObject(data []byte) ([]byte, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return data[start : i+1], true
				}
			}
		}
	}
	return nil, false
}

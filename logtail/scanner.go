//   Copyright 2016 Wercker Holding BV
//
//   Licensed under the Apache License, Version 2.0 (the "License");
//   you may not use this file except in compliance with the License.
//   You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.

// Package logtail implements the Exec Socket's log-file scanner: it
// remembers how much of a run's log file has already been forwarded
// to the client and returns only newly appended, complete lines on
// each poll.
package logtail

import (
	"bufio"
	"bytes"
	"io"
	"os"
)

// Scanner tails a single file, appending-only, by byte offset.
type Scanner struct {
	path   string
	offset int64
}

// NewScanner returns a Scanner bound to path, starting from its
// current beginning; callers poll it periodically.
func NewScanner(path string) *Scanner {
	return &Scanner{path: path}
}

// Poll returns any complete lines appended since the last poll. A
// trailing partial line (no newline yet) is held back until a future
// poll completes it. Poll tolerates the file not existing yet.
func (s *Scanner) Poll() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(f)
	var lines []string
	var consumed int64
	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 && err == nil {
			lines = append(lines, string(bytes.TrimRight(chunk, "\n")))
			consumed += int64(len(chunk))
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	s.offset += consumed
	return lines, nil
}

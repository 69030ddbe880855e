package cli

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// AddIgnorePath makes sure entry is listed in the .gitignore at gitignore,
// creating the file if needed. Existing content is left untouched.
func AddIgnorePath(gitignore, entry string) error {
	data, err := os.ReadFile(gitignore)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "read %q", gitignore)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	f, err := os.OpenFile(gitignore, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open %q", gitignore)
	}
	defer f.Close()

	var buf bytes.Buffer
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(entry)
	buf.WriteByte('\n')
	if _, err := f.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "append to %q", gitignore)
	}
	return f.Close()
}

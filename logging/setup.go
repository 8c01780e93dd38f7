package logging

import (
	"io"
	"os"
)

// Open builds the logger used by the binaries: JSON lines on stdout and, when
// filePath is set, a rotating log file. The returned close func flushes the file.
func Open(component string, level Level, filePath string) (*Logger, func() error, error) {
	writers := []io.Writer{os.Stdout}
	closeFn := func() error { return nil }
	if filePath != "" {
		fw, err := NewFileWriter(filePath, DefaultFileOptions)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fw)
		closeFn = fw.Close
	}
	return New(component, level, writers...), closeFn, nil
}

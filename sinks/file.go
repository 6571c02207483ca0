package sinks

import (
	"os"

	"github.com/creastat/xorpipe/core"
	"github.com/spf13/afero"
)

// OutputPerm is the permission set given to new output files, before umask
const OutputPerm os.FileMode = 0o666

// CreateFile creates or truncates path for writing
func CreateFile(fs afero.Fs, path string) (afero.File, error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, OutputPerm)
	if err != nil {
		return nil, &core.IOError{Stream: path, Op: "create", Err: err}
	}
	return f, nil
}

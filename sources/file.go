package sources

import (
	"errors"

	"github.com/creastat/xorpipe/core"
	"github.com/spf13/afero"
)

// OpenFiles opens each path as a ReaderSource named after the path. Regular
// files declare their size; anything else (pipes, devices) is read with an
// unknown length. The returned close function closes every file.
func OpenFiles(fs afero.Fs, paths []string, blockSize int) ([]core.BlockSource, func() error, error) {
	files := make([]afero.File, 0, len(paths))
	closeAll := func() error {
		var errs []error
		for _, f := range files {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	srcs := make([]core.BlockSource, 0, len(paths))
	for _, path := range paths {
		f, err := fs.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, &core.IOError{Stream: path, Op: "open", Err: err}
		}
		files = append(files, f)

		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, &core.IOError{Stream: path, Op: "stat", Err: err}
		}

		length := core.LengthUnknown
		if info.Mode().IsRegular() {
			length = info.Size()
		}
		srcs = append(srcs, NewReaderSource(path, f, length, blockSize))
	}

	return srcs, closeAll, nil
}

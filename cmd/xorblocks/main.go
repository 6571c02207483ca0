// xorblocks writes the byte-wise XOR of its input files to an output file.
// The output is as long as the longest input; shorter inputs act as if
// padded with zeros. Inputs are read concurrently, one goroutine per file,
// and combined one block at a time.
//
// Usage:
//
//	xorblocks [flags] OUTPUT INPUT [INPUT...]
//	xorblocks --job job.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creastat/infra/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/creastat/xorpipe"
	"github.com/creastat/xorpipe/core"
	"github.com/creastat/xorpipe/sinks"
	"github.com/creastat/xorpipe/sources"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage is returned when the command line cannot describe a job
var errUsage = errors.New("usage: xorblocks [flags] OUTPUT INPUT [INPUT...]")

func run(ctx context.Context, args []string, fs afero.Fs, stdout io.Writer) error {
	var jobPath string
	var maxStages int64
	job := &core.JobConfig{}

	flagSet := pflag.NewFlagSet("xorblocks", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&jobPath, "job", "", "YAML job file describing output and inputs")
	flagSet.IntVar(&job.BlockSize, "block-size", core.DefaultBlockSize, "bytes combined per block")
	flagSet.Int64Var(&maxStages, "max-stages", 0, "refuse runs needing more blocks than this (0 = no limit)")
	flagSet.StringVar((*string)(&job.Compress), "compress", string(core.CodecNone), "output codec: none, zstd or lz4")
	flagSet.BoolVar(&job.Digest, "digest", false, "print the BLAKE3 digest of the uncompressed output")
	flagSet.StringVar(&job.LogLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stdout, flagSet)
		return nil
	}

	if jobPath != "" {
		if flagSet.NArg() > 0 {
			return fmt.Errorf("--job cannot be combined with positional arguments")
		}
		loaded, err := core.LoadJob(fs, jobPath)
		if err != nil {
			return err
		}
		job = loaded
	} else {
		if flagSet.NArg() < 2 {
			return errUsage
		}
		job.Output = flagSet.Arg(0)
		job.Inputs = flagSet.Args()[1:]
	}
	if job.Output == "" || len(job.Inputs) == 0 {
		return errUsage
	}

	logger := telemetry.New(telemetry.Config{Level: job.LogLevel})
	return xorFiles(ctx, fs, job, maxStages, logger, stdout)
}

func xorFiles(ctx context.Context, fs afero.Fs, job *core.JobConfig, maxStages int64, logger telemetry.Logger, stdout io.Writer) error {
	log := logger.WithModule("xorblocks")
	fmt.Fprintf(stdout, "Hello, creating %s from %d input files\n", job.Output, len(job.Inputs))

	out, err := sinks.CreateFile(fs, job.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	srcs, closeInputs, err := sources.OpenFiles(fs, job.Inputs, job.BlockSize)
	if err != nil {
		return err
	}
	defer closeInputs()

	compressor, err := sinks.NewCompressor(out, job.Compress)
	if err != nil {
		return err
	}

	builder := xorpipe.NewBuilder().
		SetBlockSize(job.BlockSize).
		SetMaxStages(maxStages).
		AddSources(srcs...).
		SetSink(compressor).
		SetLogger(logger)
	if job.Digest {
		builder.EnableDigest()
	}

	pipeline, err := builder.Build()
	if err != nil {
		return err
	}

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("finish %s output: %w", job.Compress, err)
	}

	info, err := out.Stat()
	if err != nil {
		return &core.IOError{Stream: job.Output, Op: "stat", Err: err}
	}
	log.Debug("Output complete",
		telemetry.String("output", job.Output),
		telemetry.String("codec", string(job.Compress)),
		telemetry.Int("blocks", result.Blocks),
		telemetry.Int("bytes_written", int(result.BytesWritten)),
		telemetry.Int("file_size", int(info.Size())))

	fmt.Fprintf(stdout, "Created %s with size %d bytes\n", job.Output, info.Size())
	if job.Digest {
		fmt.Fprintf(stdout, "BLAKE3 %s\n", result.Digest)
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, errUsage.Error())
	fmt.Fprintln(w, "       xorblocks --job job.yaml")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}

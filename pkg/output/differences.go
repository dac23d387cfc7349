package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Compression of a report file, chosen by its extension
type Compression int

const (
	CompressNone Compression = iota
	CompressGzip
	CompressZstd
)

// ReportFileFormat derives the format and compression of a report file
// from its name: .json, .json.gz and .json.zst are JSON, everything else
// is human-readable text.
func ReportFileFormat(path string) (format string, compression Compression) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".gz"):
		compression = CompressGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		compression = CompressZstd
		name = strings.TrimSuffix(name, ".zst")
	}
	if strings.HasSuffix(name, ".json") {
		return "json", compression
	}
	return "human", compression
}

// WriteDifferencesReport writes report to path. The file is written to a
// temporary name first and renamed once complete.
func WriteDifferencesReport(report *Report, path string) (retErr error) {
	format, compression := ReportFileFormat(path)
	formatter, err := NewFormatter(format, false)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if retErr != nil {
			file.Close()
			os.Remove(tmp)
		}
	}()

	if err := writeCompressed(file, compression, func(w io.Writer) error {
		return formatter.Write(w, report)
	}); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename report file: %w", err)
	}
	return nil
}

// writeCompressed runs write against a buffered, optionally compressed
// writer on top of dst and flushes everything before returning
func writeCompressed(dst io.Writer, compression Compression, write func(w io.Writer) error) error {
	bufWriter := bufio.NewWriter(dst)

	var compressedWriter io.WriteCloser
	switch compression {
	case CompressZstd:
		zstdWriter, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	case CompressGzip:
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	var w io.Writer = bufWriter
	if compressedWriter != nil {
		w = compressedWriter
	}
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if compressedWriter != nil {
		if err := compressedWriter.Close(); err != nil {
			return fmt.Errorf("compressed writer close failed: %w", err)
		}
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("buffer flush failed: %w", err)
	}
	return nil
}

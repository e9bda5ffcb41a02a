package netcdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt is appended to dataset paths written with compression.
const CompressedExt = ".zst"

// materialize returns a local path the netCDF library can open. Compressed
// inputs are expanded into a temporary file, reported by the second result.
func materialize(path string) (string, bool, error) {
	if !strings.HasSuffix(path, CompressedExt) {
		return path, false, nil
	}
	in, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return "", false, fmt.Errorf("zstd %s: %w", path, err)
	}
	defer dec.Close()

	out, err := os.CreateTemp("", strings.TrimSuffix(filepath.Base(path), CompressedExt)+"-*")
	if err != nil {
		return "", false, err
	}
	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", false, fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", false, err
	}
	return out.Name(), true, nil
}

// compressFile writes a zstd-compressed copy of src to dst.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

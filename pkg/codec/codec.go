// Package codec serializes a [license.PackageList] into the compact,
// compressed artifact that gets embedded into the final binary, and
// reconstructs the list from those bytes at program start.
//
// # Format
//
// The artifact is self-describing:
//
//	bytes 0-3   magic "LBPK"
//	bytes 4-5   format version, big-endian uint16
//	bytes 6-    zstd frame of the field payload
//
// The payload is a uvarint package count followed by the fields of each
// package in a fixed order, strings length-prefixed with uvarints. License
// boilerplate is highly redundant across packages, so the compressor does
// most of the size work; the field layout only has to be compact and
// deterministic.
//
// Decoding is all-or-nothing: a bad magic, an unknown version, a corrupt
// frame, or trailing bytes is a fatal CODEC_ERROR, never partial data.
// The artifact is trusted compile-time input, so a decode failure means
// toolchain skew that must not be silently tolerated.
package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
)

var magic = [4]byte{'L', 'B', 'P', 'K'}

// FormatVersion is the current artifact format version. Bump on any change
// to the field layout.
const FormatVersion uint16 = 1

// Encode serializes and compresses the package list.
// Output is byte-identical for identical inputs.
func Encode(list *license.PackageList) ([]byte, error) {
	payload := appendList(nil, list)

	// Single-threaded encoding keeps the compressed bytes reproducible.
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeCodec, err, "create compressor")
	}
	defer enc.Close()

	out := make([]byte, 0, len(payload)/4+6)
	out = append(out, magic[:]...)
	out = binary.BigEndian.AppendUint16(out, FormatVersion)
	out = enc.EncodeAll(payload, out)
	return out, nil
}

// Decode decompresses and deserializes an artifact produced by [Encode].
func Decode(data []byte) (*license.PackageList, error) {
	if len(data) < 6 {
		return nil, lberrors.New(lberrors.ErrCodeCodec, "artifact truncated: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, lberrors.New(lberrors.ErrCodeCodec, "bad magic %q", data[:4])
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != FormatVersion {
		return nil, lberrors.New(lberrors.ErrCodeCodec, "format version %d, expected %d", v, FormatVersion)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeCodec, err, "create decompressor")
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(data[6:], nil)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeCodec, err, "decompress artifact")
	}

	return readList(payload)
}

func appendList(b []byte, list *license.PackageList) []byte {
	b = binary.AppendUvarint(b, uint64(list.Len()))
	for _, p := range list.Packages() {
		b = appendString(b, p.Name)
		b = appendString(b, p.Version)
		b = appendString(b, p.Origin)
		b = binary.AppendUvarint(b, uint64(len(p.Authors)))
		for _, a := range p.Authors {
			b = appendString(b, a)
		}
		b = appendString(b, p.Description)
		b = appendString(b, p.Homepage)
		b = appendString(b, p.Repository)
		b = appendString(b, p.LicenseID)
		b = appendString(b, p.LicenseText)
		b = append(b, byte(p.Provenance))
	}
	return b
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func readList(payload []byte) (*license.PackageList, error) {
	r := bytes.NewReader(payload)

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeCodec, err, "read package count")
	}
	if count > uint64(r.Len()) {
		// Each package needs at least one byte; reject before allocating.
		return nil, lberrors.New(lberrors.ErrCodeCodec, "package count %d exceeds payload size", count)
	}

	pkgs := make([]license.Package, 0, count)
	for i := uint64(0); i < count; i++ {
		p, err := readPackage(r)
		if err != nil {
			return nil, lberrors.Wrap(lberrors.ErrCodeCodec, err, "read package %d", i)
		}
		pkgs = append(pkgs, p)
	}

	if r.Len() != 0 {
		return nil, lberrors.New(lberrors.ErrCodeCodec, "%d trailing bytes after package data", r.Len())
	}

	return license.NewPackageList(pkgs...), nil
}

func readPackage(r *bytes.Reader) (license.Package, error) {
	var p license.Package
	var err error

	if p.Name, err = readString(r); err != nil {
		return p, err
	}
	if p.Version, err = readString(r); err != nil {
		return p, err
	}
	if p.Origin, err = readString(r); err != nil {
		return p, err
	}

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return p, err
	}
	if n > uint64(r.Len()) {
		return p, lberrors.New(lberrors.ErrCodeCodec, "author count %d exceeds payload size", n)
	}
	if n > 0 {
		p.Authors = make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			a, err := readString(r)
			if err != nil {
				return p, err
			}
			p.Authors = append(p.Authors, a)
		}
	}

	if p.Description, err = readString(r); err != nil {
		return p, err
	}
	if p.Homepage, err = readString(r); err != nil {
		return p, err
	}
	if p.Repository, err = readString(r); err != nil {
		return p, err
	}
	if p.LicenseID, err = readString(r); err != nil {
		return p, err
	}
	if p.LicenseText, err = readString(r); err != nil {
		return p, err
	}

	prov, err := r.ReadByte()
	if err != nil {
		return p, err
	}
	p.Provenance = license.Provenance(prov)
	if !p.Provenance.Valid() {
		return p, lberrors.New(lberrors.ErrCodeCodec, "unknown provenance %d", prov)
	}

	return p, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n > uint64(r.Len()) {
		return "", lberrors.New(lberrors.ErrCodeCodec, "string length %d exceeds payload size", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

package crypto

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd levels csync accepts; tie-break rule from spec.md §4.1.
const (
	MinCompressionLevel = 1
	MaxCompressionLevel = 19
)

// ValidateCompressionLevel rejects an out-of-range level at parse time,
// before any file is touched.
func ValidateCompressionLevel(level int) error {
	if level < MinCompressionLevel || level > MaxCompressionLevel {
		return fmt.Errorf("compression level %d out of range [%d,%d]", level, MinCompressionLevel, MaxCompressionLevel)
	}
	return nil
}

// NewCompressEncodeStage returns a Stage that compresses pushed chunks at
// the given zstd level (1-19). Grounded on the zstd.NewWriter usage in
// i5heu-ouroboros-db/pkg/cas/encryption.go; the 1-19 range this codebase
// exposes on its command surface is mapped down to klauspost/compress's
// four EncoderLevel speed tiers, since that library does not expose a
// numeric 1-19 level knob the way the reference zstd CLI does.
func NewCompressEncodeStage(level int) (Stage, error) {
	if err := ValidateCompressionLevel(level); err != nil {
		return nil, err
	}
	s := &bufferedZstdEncoder{level: encoderLevelForLevel(level)}
	return s, nil
}

// encoderLevelForLevel buckets the 1-19 command-surface level into
// klauspost/compress/zstd's four speed/ratio tiers.
func encoderLevelForLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// bufferedZstdEncoder buffers pushed plaintext and only invokes the zstd
// encoder at Finalize. This trades streaming latency for a far simpler,
// more obviously correct adapter than wiring zstd.Encoder through a
// io.Pipe for chunk-by-chunk output; the per-file pipeline already holds
// the whole file in memory for compression in this codebase's caller
// (internal/pipeline), so there is no added memory cost.
type bufferedZstdEncoder struct {
	level zstd.EncoderLevel
	buf   []byte
}

func (s *bufferedZstdEncoder) Push(chunk []byte) ([]byte, error) {
	s.buf = append(s.buf, chunk...)
	return nil, nil
}

func (s *bufferedZstdEncoder) Finalize() ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return nil, fmt.Errorf("construct zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(s.buf, nil), nil
}

// bufferedZstdDecoder mirrors bufferedZstdEncoder for the decrypt path.
type bufferedZstdDecoder struct {
	buf []byte
}

// NewDecompressDecodeStage returns a Stage that decompresses pushed
// ciphertext-derived chunks.
func NewDecompressDecodeStage() Stage {
	return &bufferedZstdDecoder{}
}

func (s *bufferedZstdDecoder) Push(chunk []byte) ([]byte, error) {
	s.buf = append(s.buf, chunk...)
	return nil, nil
}

func (s *bufferedZstdDecoder) Finalize() ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("construct zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(s.buf, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

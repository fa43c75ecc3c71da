package rag

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Embedder maps a text string to a fixed-length vector. Implementations are
// remote and may fail; BuildIndex aborts on the first failure.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Result is one retrieved segment with its distance to the query vector
// (squared L2, smaller is closer).
type Result struct {
	Text     string
	Distance float64
}

// Index is an in-memory vector index over text segments. Vectors are stored
// as float32 to keep the serialized artifact compact; search is brute force,
// which is plenty for one document per session.
type Index struct {
	dim      int
	vectors  [][]float32
	segments []string
	model    string
}

// BuildIndex embeds every segment in order, one embed call per segment. Any
// embedding failure abandons the whole build; no partial index escapes.
func BuildIndex(ctx context.Context, embedder Embedder, segments []string) (*Index, error) {
	if len(segments) == 0 {
		return nil, errors.New("no segments to index")
	}
	ix := &Index{
		vectors:  make([][]float32, 0, len(segments)),
		segments: make([]string, 0, len(segments)),
		model:    embedder.Model(),
	}
	for i, seg := range segments {
		vec, err := embedder.Embed(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("embed segment %d/%d: %w", i+1, len(segments), err)
		}
		if ix.dim == 0 {
			ix.dim = len(vec)
		}
		if len(vec) != ix.dim || ix.dim == 0 {
			return nil, fmt.Errorf("embed segment %d/%d: dimension %d, want %d", i+1, len(segments), len(vec), ix.dim)
		}
		ix.vectors = append(ix.vectors, toFloat32(vec))
		ix.segments = append(ix.segments, seg)
	}
	return ix, nil
}

// Search returns the k nearest segments by ascending squared-L2 distance.
func (ix *Index) Search(query []float64, k int) []Result {
	if k <= 0 || len(ix.vectors) == 0 {
		return nil
	}
	results := make([]Result, len(ix.vectors))
	for i, vec := range ix.vectors {
		results[i] = Result{Text: ix.segments[i], Distance: sqDistance(vec, query)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// Len reports the number of indexed segments.
func (ix *Index) Len() int { return len(ix.segments) }

// Dimension reports the embedding vector length.
func (ix *Index) Dimension() int { return ix.dim }

// Model reports the embedding model the index was built with.
func (ix *Index) Model() string { return ix.model }

func sqDistance(a []float32, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - b[i]
		sum += d * d
	}
	// Treat missing dimensions as maximally distant rather than silently equal.
	if len(a) != len(b) {
		sum += math.Abs(float64(len(a) - len(b)))
	}
	return sum
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

const (
	vectorMagic   = "RGV1"
	vectorVersion = uint32(1)
)

type indexMeta struct {
	Model    string   `json:"model"`
	Segments []string `json:"segments"`
}

// MarshalVectors serializes the numeric half of the index artifact pair.
// Layout: magic, version, dimension, count, then count*dimension float32 LE.
func (ix *Index) MarshalVectors() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(vectorMagic)
	for _, v := range []uint32{vectorVersion, uint32(ix.dim), uint32(len(ix.vectors))} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	for _, vec := range ix.vectors {
		if err := binary.Write(&buf, binary.LittleEndian, vec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// MarshalMeta serializes the segment lookup half of the artifact pair.
func (ix *Index) MarshalMeta() ([]byte, error) {
	return json.Marshal(indexMeta{Model: ix.model, Segments: ix.segments})
}

// DecodeIndex reconstructs an Index from the artifact pair. Both halves must
// come from the same MarshalVectors/MarshalMeta call; a mismatched or
// truncated pair is an error.
func DecodeIndex(vectors, meta []byte) (*Index, error) {
	r := bytes.NewReader(vectors)
	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vectorMagic {
		return nil, errors.New("vector artifact: bad magic")
	}
	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("vector artifact: truncated header: %w", err)
		}
	}
	if version != vectorVersion {
		return nil, fmt.Errorf("vector artifact: unsupported version %d", version)
	}
	if dim == 0 || count == 0 {
		return nil, errors.New("vector artifact: empty index")
	}
	vecs := make([][]float32, count)
	for i := range vecs {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("vector artifact: truncated data: %w", err)
		}
		vecs[i] = vec
	}
	var m indexMeta
	if err := json.Unmarshal(meta, &m); err != nil {
		return nil, fmt.Errorf("meta artifact: %w", err)
	}
	if len(m.Segments) != int(count) {
		return nil, fmt.Errorf("artifact pair mismatch: %d vectors, %d segments", count, len(m.Segments))
	}
	return &Index{
		dim:      int(dim),
		vectors:  vecs,
		segments: m.Segments,
		model:    m.Model,
	}, nil
}

//go:build !(sqlite_vec && cgo)

package store

import (
	"database/sql/driver"
	"fmt"
	"math"

	sqlite "modernc.org/sqlite"
)

const (
	driverName   = "sqlite"
	distanceFunc = "vector_distance_cos"
)

func init() {
	// Deterministic: same input blobs produce the same distance.
	_ = sqlite.RegisterDeterministicScalarFunction(distanceFunc, 2, vecDistanceCos)
}

// vecDistanceCos returns 1 - cosine similarity of two float32 blobs.
// Empty or zero vectors are maximally distant.
func vecDistanceCos(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s expects 2 arguments", distanceFunc)
	}
	a, err := decodeValue(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeValue(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("%s: dimension mismatch %d vs %d", distanceFunc, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

func decodeValue(v driver.Value) ([]float32, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeEmbedding(x)
	case string:
		return decodeEmbedding([]byte(x))
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", distanceFunc, v)
	}
}

//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName   = "sqlite3"
	distanceFunc = "vec_distance_cosine"
)

func init() {
	// Register sqlite-vec as an auto-loaded extension of mattn/go-sqlite3.
	vec.Auto()
}

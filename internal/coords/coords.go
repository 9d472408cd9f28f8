// Package coords converts axis vectors between laboratory frames.
//
// imgCIF: X along the principal goniometer axis, Z towards the source.
// McStas (NeXus): Z along the beam, Y up. With a horizontal goniometer axis
// the two differ by a half turn about Y.
package coords

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Frame names a laboratory coordinate convention.
type Frame string

const (
	McStas Frame = "mcstas"
	ImgCIF Frame = "imgcif"
)

var imgcifToMcStas = mat.NewDense(3, 3, []float64{
	-1, 0, 0,
	0, 1, 0,
	0, 0, -1,
})

// Convert maps v from one frame to another.
func Convert(v [3]float64, from, to Frame) ([3]float64, error) {
	if from == to {
		return v, nil
	}
	switch {
	case from == ImgCIF && to == McStas, from == McStas && to == ImgCIF:
		// the rotation is its own inverse
		return apply(imgcifToMcStas, v), nil
	}
	return v, fmt.Errorf("coords: no conversion from %q to %q", from, to)
}

// ConvertAll converts every vector in vs, returning a new slice.
func ConvertAll(vs [][3]float64, from, to Frame) ([][3]float64, error) {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		c, err := Convert(v, from, to)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func apply(m mat.Matrix, v [3]float64) [3]float64 {
	in := mat.NewVecDense(3, []float64{v[0], v[1], v[2]})
	var res mat.VecDense
	res.MulVec(m, in)
	// avoid emitting -0 for components that stay zero
	return [3]float64{res.AtVec(0) + 0, res.AtVec(1) + 0, res.AtVec(2) + 0}
}
